package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"visatrack/internal/shared/telemetry"
)

// Service implements the account operations.
type Service struct {
	Repo Repo

	// Now is overridden in tests.
	Now func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// SignupParams carries a validated registration request. Email is
// expected lowercased and trimmed by the caller.
type SignupParams struct {
	Email    string
	Password string
	FullName string
	VisaType string
}

// Signup creates the account with a hashed password and an active flag.
func (s *Service) Signup(ctx context.Context, p SignupParams) (User, error) {
	now := s.now()
	last := now
	u := User{
		UserID:       uuid.NewString(),
		Email:        p.Email,
		PasswordHash: hashPassword(p.Password),
		FullName:     p.FullName,
		VisaType:     p.VisaType,
		LastLogin:    &last,
		CreatedAt:    now,
		IsActive:     true,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	telemetry.Info("user.created", map[string]any{
		"request_id": telemetry.RequestIDFrom(ctx),
		"user_id":    u.UserID,
		"visa_type":  u.VisaType,
	})
	return u, nil
}

// Login verifies the credentials and bumps the login counter. The bool
// result marks a first-ever login. Unknown emails and wrong passwords
// both come back as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (User, bool, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, false, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, false, err
	}
	if u.PasswordHash != hashPassword(password) {
		return User{}, false, ErrInvalidCredentials
	}
	if !u.IsActive {
		return User{}, false, ErrDisabled
	}

	first := u.LoginCount == 0
	u.LoginCount++
	now := s.now()
	u.LastLogin = &now
	if err := s.Repo.RecordLogin(ctx, u.UserID, u.LoginCount, now); err != nil {
		// The login itself still succeeds; only the counter is stale.
		telemetry.Error("user.login_tracking_failed", map[string]any{
			"request_id": telemetry.RequestIDFrom(ctx),
			"user_id":    u.UserID,
			"error":      err.Error(),
		})
	}
	telemetry.Info("user.logged_in", map[string]any{
		"request_id":  telemetry.RequestIDFrom(ctx),
		"user_id":     u.UserID,
		"login_count": u.LoginCount,
	})
	return u, first, nil
}

// Profile returns the stored account for an authenticated user.
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	return s.Repo.GetByID(ctx, userID)
}

// CheckActive satisfies the auth middleware hook: a bearer user must
// exist and be active.
func (s *Service) CheckActive(ctx context.Context, userID string) error {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return ErrDisabled
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
