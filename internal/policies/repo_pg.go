package policies

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PGRepo implements Repo against Postgres.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

var _ Repo = (*PGRepo)(nil)

// Save inserts one policy row. The unique index on source_url carries
// the dedupe: a conflicting insert affects zero rows.
func (r *PGRepo) Save(ctx context.Context, p PolicyUpdate) error {
	const query = `
		INSERT INTO policy_updates
			(id, title, summary, impact_level, affected_visas, action_items, source_url, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_url) DO NOTHING`

	visas, err := json.Marshal(stringList(p.AffectedVisas))
	if err != nil {
		return fmt.Errorf("encode affected visas: %w", err)
	}
	items, err := json.Marshal(stringList(p.ActionItems))
	if err != nil {
		return fmt.Errorf("encode action items: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, query,
		p.ID, p.Title, p.Summary, p.ImpactLevel, visas, items, p.SourceURL, p.PublishedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return ErrDuplicate
	}
	return nil
}

// List returns the newest policies first.
func (r *PGRepo) List(ctx context.Context, limit int) ([]PolicyUpdate, error) {
	const query = `
		SELECT id, title, summary, impact_level, affected_visas, action_items, source_url, published_at, created_at
		FROM policy_updates
		ORDER BY published_at DESC
		LIMIT $1`

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyUpdate
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (PolicyUpdate, error) {
	var (
		p            PolicyUpdate
		visas, items []byte
		published    sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Title, &p.Summary, &p.ImpactLevel, &visas, &items, &p.SourceURL, &published, &p.CreatedAt)
	if err != nil {
		return PolicyUpdate{}, err
	}
	if len(visas) > 0 {
		if err := json.Unmarshal(visas, &p.AffectedVisas); err != nil {
			return PolicyUpdate{}, fmt.Errorf("decode affected visas: %w", err)
		}
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &p.ActionItems); err != nil {
			return PolicyUpdate{}, fmt.Errorf("decode action items: %w", err)
		}
	}
	if published.Valid {
		p.PublishedAt = published.Time
	}
	return p, nil
}

// stringList keeps jsonb columns as [] rather than null for empty values.
func stringList(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
