package documents

import "errors"

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotVerifiable = errors.New("document is not awaiting verification")
	ErrSignUpload    = errors.New("failed to generate upload url")
	ErrCreateRecord  = errors.New("failed to create document record")
)

const (
	ErrorCodeMissingBody      = "MISSING_BODY"
	ErrorCodeInvalidJSON      = "INVALID_JSON"
	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	ErrorCodeInvalidStatus    = "INVALID_STATUS"
	ErrorCodeInvalidLimit     = "INVALID_LIMIT"
	ErrorCodeStorage          = "STORAGE_ERROR"
	ErrorCodeDatabase         = "DATABASE_ERROR"
	ErrorCodeInternal         = "INTERNAL_ERROR"
)
