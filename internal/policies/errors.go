package policies

import "errors"

var (
	// ErrDuplicate reports a policy whose source URL is already stored.
	ErrDuplicate = errors.New("policy already recorded")
	// ErrUnreachable reports that a news source could not be fetched
	// after retries.
	ErrUnreachable = errors.New("news source unreachable")
)

// Error codes returned in policy API responses.
const (
	ErrorCodeInvalidLimit  = "INVALID_LIMIT"
	ErrorCodeInvalidVisa   = "INVALID_VISA_TYPE"
	ErrorCodeInvalidImpact = "INVALID_IMPACT_LEVEL"
	ErrorCodeDatabase      = "DATABASE_ERROR"
	ErrorCodeUnreachable   = "SOURCE_UNREACHABLE"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)
