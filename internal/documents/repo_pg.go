package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"visatrack/internal/api"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var stage sql.NullString
	var storageKey sql.NullString
	var extracted, validation []byte
	var errMsg sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.DocumentType,
		&doc.FileName,
		&storageKey,
		&status,
		&stage,
		&doc.SizeBytes,
		&extracted,
		&validation,
		&errMsg,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&processedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.Status = api.DocumentStatus(status)
	if storageKey.Valid {
		doc.StorageKey = storageKey.String
	}
	if stage.Valid {
		doc.ProcessingStage = stage.String
	}
	if len(extracted) > 0 {
		doc.ExtractedData = json.RawMessage(extracted)
	}
	if len(validation) > 0 {
		doc.ValidationErrors = json.RawMessage(validation)
	}
	if errMsg.Valid {
		doc.ErrorMessage = errMsg.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return doc, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id, user_id, document_type, file_name, storage_key, status,
    processing_stage, size_bytes, extracted_data, validation_errors,
    error_message, created_at, updated_at, processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.DocumentType,
		doc.FileName,
		doc.StorageKey,
		string(doc.Status),
		nullString(doc.ProcessingStage),
		doc.SizeBytes,
		nullJSON(doc.ExtractedData),
		nullJSON(doc.ValidationErrors),
		nullString(doc.ErrorMessage),
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.ProcessedAt,
	)
	return err
}

// Get fetches a document by ID without owner scoping.
func (r *PGRepo) Get(ctx context.Context, documentID string) (Document, error) {
	const query = `
SELECT id, user_id, document_type, file_name, storage_key, status, processing_stage, size_bytes, extracted_data, validation_errors, error_message, created_at, updated_at, processed_at
FROM documents
WHERE id = $1
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// GetByID fetches a document owned by the given user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT id, user_id, document_type, file_name, storage_key, status, processing_stage, size_bytes, extracted_data, validation_errors, error_message, created_at, updated_at, processed_at
FROM documents
WHERE user_id = $1 AND id = $2
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, userID, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// GetByStorageKey resolves the document a stored object belongs to.
func (r *PGRepo) GetByStorageKey(ctx context.Context, storageKey string) (Document, error) {
	const query = `
SELECT id, user_id, document_type, file_name, storage_key, status, processing_stage, size_bytes, extracted_data, validation_errors, error_message, created_at, updated_at, processed_at
FROM documents
WHERE storage_key = $1
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, storageKey))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// ListByUser lists documents newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	const query = `
SELECT id, user_id, document_type, file_name, storage_key, status, processing_stage, size_bytes, extracted_data, validation_errors, error_message, created_at, updated_at, processed_at
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// MarkReceived records the stored object size and flips the document to
// processing at the text extraction stage.
func (r *PGRepo) MarkReceived(ctx context.Context, documentID string, sizeBytes int64) error {
	const query = `
UPDATE documents
SET size_bytes = $1, status = $2, processing_stage = $3, updated_at = $4
WHERE id = $5`
	res, err := r.DB.ExecContext(ctx, query, sizeBytes, string(api.StatusProcessing), api.StageTextExtraction, time.Now().UTC(), documentID)
	if err != nil {
		return err
	}
	updated, _ := res.RowsAffected()
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStage advances the processing stage without touching the status.
func (r *PGRepo) SetStage(ctx context.Context, documentID, stage string) error {
	const query = `
UPDATE documents
SET processing_stage = $1, updated_at = $2
WHERE id = $3`
	_, err := r.DB.ExecContext(ctx, query, stage, time.Now().UTC(), documentID)
	return err
}

// SetResult stores the terminal outcome of a processing run.
func (r *PGRepo) SetResult(ctx context.Context, documentID string, res Result) error {
	const query = `
UPDATE documents
SET status = $1, processing_stage = $2, extracted_data = $3, validation_errors = $4,
    error_message = $5, processed_at = $6, updated_at = $7
WHERE id = $8`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		string(res.Status),
		nullString(res.Stage),
		nullJSON(res.ExtractedData),
		nullJSON(res.ValidationErrors),
		nullString(res.ErrorMessage),
		res.ProcessedAt,
		time.Now().UTC(),
		documentID,
	)
	return err
}

// SetVerified replaces the extraction after user corrections and marks the
// document completed.
func (r *PGRepo) SetVerified(ctx context.Context, userID, documentID string, extracted json.RawMessage) error {
	const query = `
UPDATE documents
SET extracted_data = $1, validation_errors = NULL, error_message = NULL, status = $2, updated_at = $3
WHERE user_id = $4 AND id = $5`
	res, err := r.DB.ExecContext(ctx, query, []byte(extracted), string(api.StatusCompleted), time.Now().UTC(), userID, documentID)
	if err != nil {
		return err
	}
	updated, _ := res.RowsAffected()
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document row.
func (r *PGRepo) Delete(ctx context.Context, userID, documentID string) error {
	const query = `DELETE FROM documents WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userID, documentID)
	if err != nil {
		return err
	}
	deleted, _ := res.RowsAffected()
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
