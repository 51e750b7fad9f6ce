package policies

import "context"

// Repo defines persistence for policy updates.
type Repo interface {
	// Save stores a new policy. It returns ErrDuplicate when a policy
	// with the same source URL is already recorded.
	Save(ctx context.Context, p PolicyUpdate) error
	// List returns up to limit policies, newest first by publish date.
	List(ctx context.Context, limit int) ([]PolicyUpdate, error)
}
