// Package identity resolves the acting user attached to outgoing API calls.
package identity

import (
	"context"
	"errors"
)

// ErrNotAuthenticated is returned when no signed-in user is available.
var ErrNotAuthenticated = errors.New("identity: not authenticated")

// Identity is the signed-in user. UserID becomes the bearer token and
// Email rides along in a separate header; the profile fields are kept
// so the CLI can render them without another round trip.
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	VisaType string `json:"visa_type,omitempty"`
}

// Source yields the current identity, or ErrNotAuthenticated.
type Source interface {
	Current(ctx context.Context) (Identity, error)
}

// Static is a fixed identity, useful for tests and one-shot tools.
type Static Identity

var _ Source = Static{}

func (s Static) Current(ctx context.Context) (Identity, error) {
	if s.UserID == "" {
		return Identity{}, ErrNotAuthenticated
	}
	return Identity(s), nil
}
