package api

import (
	"errors"
	"fmt"
)

// Operation sentinels. Callers branch with errors.Is; the wrapped
// APIError keeps the server's own explanation.
var (
	ErrUploadNegotiationFailed    = errors.New("upload negotiation failed")
	ErrCorrectionSubmissionFailed = errors.New("correction submission failed")
	ErrDocumentListLoadFailed     = errors.New("document list load failed")
)

// APIError is a call the server answered with a failure envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}
