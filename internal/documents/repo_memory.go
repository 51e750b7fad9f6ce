package documents

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"visatrack/internal/api"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document // document id -> document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document)}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return nil
}

// Get returns a document by ID without owner scoping.
func (r *MemoryRepo) Get(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetByID returns a document owned by the given user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := r.Get(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetByStorageKey resolves the document a stored object belongs to.
func (r *MemoryRepo) GetByStorageKey(ctx context.Context, storageKey string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.data {
		if doc.StorageKey == storageKey {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

// ListByUser returns the user's documents, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	var docs []Document
	for _, doc := range r.data {
		if doc.UserID == userID {
			docs = append(docs, doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// MarkReceived records the stored object size and flips the document to
// processing.
func (r *MemoryRepo) MarkReceived(ctx context.Context, documentID string, sizeBytes int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.SizeBytes = sizeBytes
	doc.Status = api.StatusProcessing
	doc.ProcessingStage = api.StageTextExtraction
	doc.UpdatedAt = time.Now().UTC()
	r.data[documentID] = doc
	return nil
}

// SetStage advances the processing stage.
func (r *MemoryRepo) SetStage(ctx context.Context, documentID, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.ProcessingStage = stage
	doc.UpdatedAt = time.Now().UTC()
	r.data[documentID] = doc
	return nil
}

// SetResult stores the terminal outcome of a processing run.
func (r *MemoryRepo) SetResult(ctx context.Context, documentID string, res Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.Status = res.Status
	doc.ProcessingStage = res.Stage
	doc.ExtractedData = res.ExtractedData
	doc.ValidationErrors = res.ValidationErrors
	doc.ErrorMessage = res.ErrorMessage
	processedAt := res.ProcessedAt
	doc.ProcessedAt = &processedAt
	doc.UpdatedAt = time.Now().UTC()
	r.data[documentID] = doc
	return nil
}

// SetVerified replaces the extraction after user corrections.
func (r *MemoryRepo) SetVerified(ctx context.Context, userID, documentID string, extracted json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	doc.ExtractedData = extracted
	doc.ValidationErrors = nil
	doc.ErrorMessage = ""
	doc.Status = api.StatusCompleted
	doc.UpdatedAt = time.Now().UTC()
	r.data[documentID] = doc
	return nil
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, userID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	delete(r.data, documentID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
