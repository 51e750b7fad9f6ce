// Package workerproc turns raw queue payloads into pipeline work. It
// understands the envelope the API enqueues and the notification shape
// buckets deliver when storage events are wired straight to the queue.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"visatrack/internal/bootstrap"
	"visatrack/internal/documents"
	"visatrack/internal/queue"
	"visatrack/internal/shared/metrics"
	"visatrack/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrUnknownType indicates a payload no handler claims.
type ErrUnknownType struct {
	Meta MessageMeta
	Type string
}

func (e ErrUnknownType) Error() string {
	if e.Type == "" {
		return "unrecognized message payload"
	}
	return "unknown message type: " + e.Type
}

// ErrMissingDocumentID indicates a process message naming no document.
type ErrMissingDocumentID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingDocumentID) Error() string { return "missing document id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process document"
	}
	return "process document: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether the error is a payload defect that
// redelivery cannot fix. Consumers delete such messages instead of
// letting them cycle back.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		unknown ErrUnknownType
		missing ErrMissingDocumentID
	)
	return errors.As(err, &empty) || errors.As(err, &decode) ||
		errors.As(err, &unknown) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload. A process
// message must name the document by id or by storage key.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Type == queue.TypeDocumentProcess &&
		strings.TrimSpace(msg.DocumentID) == "" && strings.TrimSpace(msg.StorageKey) == "" {
		return msg, meta, ErrMissingDocumentID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes one queue payload.
func HandleMessage(ctx context.Context, app *bootstrap.App, body string) error {
	if app == nil {
		return errors.New("worker not configured")
	}
	metrics.IncQueueJobsReceived()

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			metrics.IncQueueJobsDropped()
			return err
		}
	}

	if msg.RequestID != "" {
		ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	}

	var err error
	switch msg.Type {
	case queue.TypeDocumentProcess:
		err = processDocument(ctx, app, msg)
	case queue.TypePoliciesRefresh:
		err = refreshPolicies(ctx, app)
	case "":
		// Buckets wired straight to the queue deliver notifications
		// with no type field.
		err = handleBucketEvent(ctx, app, body)
	default:
		metrics.IncQueueJobsDropped()
		return ErrUnknownType{Meta: ComputeMeta(body), Type: msg.Type}
	}
	if err != nil {
		if Unrecoverable(err) {
			metrics.IncQueueJobsDropped()
		} else {
			metrics.IncQueueJobsFailed()
		}
		return err
	}
	metrics.IncQueueJobsCompleted()
	return nil
}

func processDocument(ctx context.Context, app *bootstrap.App, msg queue.Message) error {
	if app.Processor == nil {
		return errors.New("document processor not configured")
	}

	documentID := strings.TrimSpace(msg.DocumentID)
	if documentID == "" {
		storageKey := strings.TrimSpace(msg.StorageKey)
		if storageKey == "" {
			return ErrMissingDocumentID{RequestID: msg.RequestID}
		}
		doc, err := app.DocumentsRepo.GetByStorageKey(ctx, storageKey)
		if err != nil {
			return ErrProcess{RequestID: msg.RequestID, Err: err}
		}
		documentID = doc.ID
	}

	if err := app.Processor.Process(ctx, documentID); err != nil {
		return ErrProcess{DocumentID: documentID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

func refreshPolicies(ctx context.Context, app *bootstrap.App) error {
	if app.PoliciesService == nil {
		return errors.New("policies service not configured")
	}
	_, err := app.PoliciesService.Refresh(ctx)
	return err
}

// storedObject is one object delivery lifted out of a bucket notification.
type storedObject struct {
	Bucket string
	Key    string
	Size   int64
}

type bucketEvent struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// parseBucketEvent reads an S3 event notification. Object keys arrive
// URL-encoded, with spaces as plus signs.
func parseBucketEvent(body string) ([]storedObject, bool) {
	var event bucketEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil || len(event.Records) == 0 {
		return nil, false
	}

	var objects []storedObject
	for _, rec := range event.Records {
		if rec.S3.Object.Key == "" {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			key = rec.S3.Object.Key
		}
		objects = append(objects, storedObject{
			Bucket: rec.S3.Bucket.Name,
			Key:    key,
			Size:   rec.S3.Object.Size,
		})
	}
	return objects, len(objects) > 0
}

func handleBucketEvent(ctx context.Context, app *bootstrap.App, body string) error {
	objects, ok := parseBucketEvent(body)
	if !ok {
		return ErrUnknownType{Meta: ComputeMeta(body)}
	}

	var firstErr error
	for _, obj := range objects {
		if err := storedObjectReceived(ctx, app, obj); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// storedObjectReceived records a delivered upload and runs extraction
// on it. Objects with no matching document record are skipped; the
// bucket may hold more than tracked uploads.
func storedObjectReceived(ctx context.Context, app *bootstrap.App, obj storedObject) error {
	if app.DocumentsRepo == nil || app.Processor == nil {
		return errors.New("document pipeline not configured")
	}

	key := stripKeyPrefix(obj.Key, app.Config.S3Prefix)
	doc, err := app.DocumentsRepo.GetByStorageKey(ctx, key)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			telemetry.Info("worker.object_skipped", map[string]any{
				"request_id":  telemetry.RequestIDFrom(ctx),
				"bucket":      obj.Bucket,
				"storage_key": key,
			})
			return nil
		}
		return ErrProcess{Err: err}
	}

	if err := app.DocumentsRepo.MarkReceived(ctx, doc.ID, obj.Size); err != nil {
		return ErrProcess{DocumentID: doc.ID, Err: err}
	}
	telemetry.Info("worker.document_received", map[string]any{
		"request_id":  telemetry.RequestIDFrom(ctx),
		"document_id": doc.ID,
		"storage_key": key,
		"size_bytes":  obj.Size,
	})

	if err := app.Processor.Process(ctx, doc.ID); err != nil {
		return ErrProcess{DocumentID: doc.ID, Err: err}
	}
	return nil
}

// stripKeyPrefix removes the bucket key prefix the object store adds,
// leaving the storage key the document record carries.
func stripKeyPrefix(key, prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}
