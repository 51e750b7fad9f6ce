package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"visatrack/internal/api"
	"visatrack/internal/queue"
	"visatrack/internal/shared/metrics"
	"visatrack/internal/shared/storage/object"
	"visatrack/internal/shared/telemetry"
	"visatrack/internal/shared/util"
	"visatrack/internal/timeline"
)

const (
	maxUploadBytes = 10 << 20 // 10MB
	presignExpiry  = 5 * time.Minute
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

var allowedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// PostSigner mints the one-shot POST credential a client uses to deliver
// a file to storage.
type PostSigner interface {
	SignPost(ctx context.Context, storageKey, contentType string, maxBytes int64, expires time.Duration) (uploadURL string, fields api.FormFields, err error)
}

// Processor runs the extraction pipeline for a stored document.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// Service contains business logic for documents.
type Service struct {
	Repo   Repo
	Store  object.ObjectStore
	Signer PostSigner
	// Queue hands stored objects to the worker fleet; when nil, Runner is
	// invoked in-process instead.
	Queue  queue.Client
	Runner Processor
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// UploadRequest is a client's ask for an upload slot.
type UploadRequest struct {
	FileName     string
	FileType     string
	DocumentType string
}

func validateUpload(req UploadRequest) error {
	documentType := strings.ToLower(strings.TrimSpace(req.DocumentType))
	if documentType == "" {
		return fmt.Errorf("%w: document_type is required", ErrInvalidInput)
	}
	if !api.ValidDocumentType(documentType) {
		return fmt.Errorf("%w: document_type must be one of: %s", ErrInvalidInput, strings.Join(api.DocumentTypes, ", "))
	}
	if strings.TrimSpace(req.FileName) == "" {
		return fmt.Errorf("%w: file_name is required", ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(req.FileName))
	supported := false
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: only PDF, JPG, JPEG and PNG files are supported", ErrInvalidInput)
	}
	if req.FileType != "" {
		if _, ok := allowedContentTypes[req.FileType]; !ok {
			return fmt.Errorf("%w: file_type %q is not supported", ErrInvalidInput, req.FileType)
		}
	}
	return nil
}

// NegotiateUpload validates the request, mints the storage credential and
// records the document in the uploading state.
func (s *Service) NegotiateUpload(ctx context.Context, userID string, req UploadRequest) (api.UploadNegotiation, error) {
	if userID == "" {
		return api.UploadNegotiation{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := validateUpload(req); err != nil {
		return api.UploadNegotiation{}, err
	}

	sanitized, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		return api.UploadNegotiation{}, fmt.Errorf("%w: invalid file_name", ErrInvalidInput)
	}

	contentType := req.FileType
	if contentType == "" {
		contentType = api.ContentTypeFor(req.FileName)
	}

	documentID := uuid.NewString()
	now := s.now()
	storageKey := fmt.Sprintf("%s/%s/%s", userID, documentID, sanitized)

	uploadURL, fields, err := s.Signer.SignPost(ctx, storageKey, contentType, maxUploadBytes, presignExpiry)
	if err != nil {
		return api.UploadNegotiation{}, fmt.Errorf("%w: %w", ErrSignUpload, err)
	}

	doc := Document{
		ID:           documentID,
		UserID:       userID,
		DocumentType: strings.ToLower(strings.TrimSpace(req.DocumentType)),
		FileName:     req.FileName,
		StorageKey:   storageKey,
		Status:       api.StatusUploading,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return api.UploadNegotiation{}, fmt.Errorf("%w: %w", ErrCreateRecord, err)
	}

	metrics.IncUploadsNegotiated()
	telemetry.Info("document.upload_negotiated", map[string]any{
		"request_id":    telemetry.RequestIDFrom(ctx),
		"user_id":       userID,
		"document_id":   documentID,
		"document_type": doc.DocumentType,
		"file_name":     doc.FileName,
	})

	return api.UploadNegotiation{
		DocumentID: documentID,
		UploadURL:  uploadURL,
		Fields:     fields,
		ExpiresIn:  int(presignExpiry.Seconds()),
	}, nil
}

// ObjectStored reacts to a delivered object: record the size, flip the
// document to processing and hand it to the processor.
func (s *Service) ObjectStored(ctx context.Context, storageKey string, sizeBytes int64) error {
	doc, err := s.Repo.GetByStorageKey(ctx, storageKey)
	if err != nil {
		return err
	}
	if err := s.Repo.MarkReceived(ctx, doc.ID, sizeBytes); err != nil {
		return err
	}

	telemetry.Info("document.received", map[string]any{
		"request_id":  telemetry.RequestIDFrom(ctx),
		"user_id":     doc.UserID,
		"document_id": doc.ID,
		"storage_key": storageKey,
		"size_bytes":  sizeBytes,
	})

	return s.dispatch(ctx, doc)
}

func (s *Service) dispatch(ctx context.Context, doc Document) error {
	if s.Queue != nil {
		msg := queue.Message{
			Type:       queue.TypeDocumentProcess,
			DocumentID: doc.ID,
			StorageKey: doc.StorageKey,
			RequestID:  telemetry.RequestIDFrom(ctx),
			EnqueuedAt: s.now().Format(time.RFC3339),
			Version:    1,
		}
		return s.Queue.Send(ctx, msg)
	}
	if s.Runner == nil {
		return fmt.Errorf("no processor configured for document %s", doc.ID)
	}
	go func(ctx context.Context, documentID string) {
		if err := s.Runner.Process(ctx, documentID); err != nil {
			telemetry.Error("document.process.failed", map[string]any{
				"request_id":  telemetry.RequestIDFrom(ctx),
				"document_id": documentID,
				"err":         err.Error(),
			})
		}
	}(telemetry.BackgroundWithRequestID(ctx), doc.ID)
	return nil
}

// Status returns the owner-scoped document snapshot.
func (s *Service) Status(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || documentID == "" {
		return Document{}, fmt.Errorf("%w: user id and document id are required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns the user's documents newest-first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit)
}

// Verify applies user corrections to an extraction awaiting review. The
// corrected fields are trusted outright: value overwritten, confidence
// raised to 1.0. Eligibility and the timeline are recomputed from the
// corrected program end date.
func (s *Service) Verify(ctx context.Context, userID, documentID string, verified map[string]string) (Document, error) {
	if len(verified) == 0 {
		return Document{}, fmt.Errorf("%w: verified_data is required", ErrInvalidInput)
	}
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != api.StatusNeedsVerification && doc.Status != api.StatusCompleted {
		return Document{}, ErrNotVerifiable
	}

	var data api.ExtractedData
	if err := json.Unmarshal(doc.ExtractedData, &data); err != nil {
		return Document{}, fmt.Errorf("stored extraction for %s is invalid: %w", documentID, err)
	}
	for name, value := range verified {
		field := data.Field(name)
		if field == nil {
			return Document{}, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, name)
		}
		field.Value = strings.TrimSpace(value)
		field.Confidence = 1.0
	}

	now := s.now()
	data.OPTEligible = timeline.Eligible(data.ProgramEndDate.Value, now)
	if assessment, err := timeline.AssessAt(data.ProgramEndDate.Value, now); err == nil {
		data.Timeline = assessment
	} else {
		data.Timeline = nil
	}

	raw, err := json.Marshal(&data)
	if err != nil {
		return Document{}, fmt.Errorf("encode corrected extraction: %w", err)
	}
	if err := s.Repo.SetVerified(ctx, userID, documentID, raw); err != nil {
		return Document{}, err
	}

	metrics.IncCorrectionsSubmitted()
	telemetry.Info("document.verified", map[string]any{
		"request_id":  telemetry.RequestIDFrom(ctx),
		"user_id":     userID,
		"document_id": documentID,
		"fields":      len(verified),
	})

	return s.Repo.GetByID(ctx, userID, documentID)
}

// Delete removes the document record and makes a best-effort attempt to
// remove the stored object.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, documentID); err != nil {
		return err
	}
	if s.Store != nil && doc.StorageKey != "" {
		if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
			telemetry.Error("document.object_delete_failed", map[string]any{
				"request_id":  telemetry.RequestIDFrom(ctx),
				"document_id": documentID,
				"storage_key": doc.StorageKey,
				"err":         err.Error(),
			})
		}
	}
	return nil
}
