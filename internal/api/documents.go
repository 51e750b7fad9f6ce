package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"visatrack/internal/identity"
)

// NegotiateUpload registers the intent to upload a file and returns the
// storage destination the bytes must go to.
func (c *Client) NegotiateUpload(ctx context.Context, fileName, fileType, documentType string) (*UploadNegotiation, error) {
	body := struct {
		FileName     string `json:"file_name"`
		FileType     string `json:"file_type"`
		DocumentType string `json:"document_type"`
	}{FileName: fileName, FileType: fileType, DocumentType: documentType}

	var out UploadNegotiation
	if err := c.do(ctx, http.MethodPost, "/api/documents/upload", body, &out); err != nil {
		return nil, wrapOp(ErrUploadNegotiationFailed, err)
	}
	if out.DocumentID == "" || out.UploadURL == "" {
		return nil, fmt.Errorf("%w: incomplete negotiation response", ErrUploadNegotiationFailed)
	}
	return &out, nil
}

// Status fetches the current lifecycle snapshot of a document.
func (c *Client) Status(ctx context.Context, documentID string) (*StatusSnapshot, error) {
	var out StatusSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+documentID+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitCorrections replaces low-confidence extracted values with the
// user's own.
func (c *Client) SubmitCorrections(ctx context.Context, documentID string, corrections map[string]string) error {
	body := struct {
		VerifiedData map[string]string `json:"verified_data"`
	}{VerifiedData: corrections}
	if err := c.do(ctx, http.MethodPut, "/api/documents/"+documentID+"/verify", body, nil); err != nil {
		return wrapOp(ErrCorrectionSubmissionFailed, err)
	}
	return nil
}

// ListDocuments fetches the user's documents, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	var out struct {
		Documents []DocumentRecord `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/documents", nil, &out); err != nil {
		return nil, wrapOp(ErrDocumentListLoadFailed, err)
	}
	return out.Documents, nil
}

// DeleteDocument removes a document and its stored object.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+documentID, nil, nil)
}

// wrapOp layers an operation sentinel over the transport error while
// letting identity failures pass through untouched.
func wrapOp(sentinel, err error) error {
	if errors.Is(err, identity.ErrNotAuthenticated) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
