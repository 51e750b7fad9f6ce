package policies

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repo for tests and local development.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]PolicyUpdate
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]PolicyUpdate)}
}

var _ Repo = (*MemoryRepo)(nil)

func (r *MemoryRepo) Save(ctx context.Context, p PolicyUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.SourceURL == p.SourceURL {
			return ErrDuplicate
		}
	}
	r.data[p.ID] = p
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]PolicyUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PolicyUpdate, 0, len(r.data))
	for _, p := range r.data {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
