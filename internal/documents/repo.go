package documents

import (
	"context"
	"encoding/json"
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	// Get fetches a document without owner scoping; the worker uses it.
	Get(ctx context.Context, documentID string) (Document, error)
	// GetByID fetches a document owned by the given user.
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	GetByStorageKey(ctx context.Context, storageKey string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Document, error)
	// MarkReceived records the stored object size and moves the document
	// into processing at the text extraction stage.
	MarkReceived(ctx context.Context, documentID string, sizeBytes int64) error
	SetStage(ctx context.Context, documentID, stage string) error
	SetResult(ctx context.Context, documentID string, res Result) error
	// SetVerified replaces the extraction payload after user corrections,
	// clears validation errors and marks the document completed.
	SetVerified(ctx context.Context, userID, documentID string, extracted json.RawMessage) error
	Delete(ctx context.Context, userID, documentID string) error
}
