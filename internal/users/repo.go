package users

import (
	"context"
	"time"
)

// Repo defines persistence for user accounts.
type Repo interface {
	// Create stores a new account. It returns ErrEmailTaken when the
	// email is already registered.
	Create(ctx context.Context, u User) error
	// GetByEmail looks an account up by its lowercased email.
	GetByEmail(ctx context.Context, email string) (User, error)
	// GetByID looks an account up by user ID.
	GetByID(ctx context.Context, userID string) (User, error)
	// RecordLogin stores the new login count and timestamp.
	RecordLogin(ctx context.Context, userID string, count int, at time.Time) error
}
