package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo against Postgres.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

var _ Repo = (*PGRepo)(nil)

const userColumns = `user_id, email, password_hash, full_name, visa_type, login_count, last_login, created_at, is_active`

// Create inserts one account row. The unique index on email carries the
// duplicate check: a conflicting insert affects zero rows.
func (r *PGRepo) Create(ctx context.Context, u User) error {
	const query = `
		INSERT INTO users (user_id, email, password_hash, full_name, visa_type, login_count, last_login, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email) DO NOTHING`

	res, err := r.DB.ExecContext(ctx, query,
		u.UserID, u.Email, u.PasswordHash, u.FullName, u.VisaType,
		u.LoginCount, u.LastLogin, u.CreatedAt, u.IsActive)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return ErrEmailTaken
	}
	return nil
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, email))
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) RecordLogin(ctx context.Context, userID string, count int, at time.Time) error {
	const query = `UPDATE users SET login_count = $1, last_login = $2 WHERE user_id = $3`

	res, err := r.DB.ExecContext(ctx, query, count, at, userID)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var lastLogin sql.NullTime
	err := row.Scan(&u.UserID, &u.Email, &u.PasswordHash, &u.FullName, &u.VisaType,
		&u.LoginCount, &lastLogin, &u.CreatedAt, &u.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}
