package users

import "errors"

var (
	// ErrNotFound reports a user that does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken reports a signup against an email already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown emails and wrong
	// passwords, so a caller cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDisabled reports a deactivated account.
	ErrDisabled = errors.New("account disabled")
)

// Error codes returned in auth API responses.
const (
	ErrorCodeMissingBody        = "MISSING_BODY"
	ErrorCodeInvalidJSON        = "INVALID_JSON"
	ErrorCodeMissingFields      = "MISSING_FIELDS"
	ErrorCodeMissingCredentials = "MISSING_CREDENTIALS"
	ErrorCodeInvalidEmail       = "INVALID_EMAIL"
	ErrorCodeWeakPassword       = "WEAK_PASSWORD"
	ErrorCodeInvalidVisaType    = "INVALID_VISA_TYPE"
	ErrorCodeUserExists         = "USER_EXISTS"
	ErrorCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrorCodeAccountDisabled    = "ACCOUNT_DISABLED"
	ErrorCodeUserNotFound       = "USER_NOT_FOUND"
	ErrorCodeDatabase           = "DATABASE_ERROR"
)
