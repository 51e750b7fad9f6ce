package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var userTestColumns = []string{
	"user_id", "email", "password_hash", "full_name", "visa_type",
	"login_count", "last_login", "created_at", "is_active",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	u := User{
		UserID:       "user-1",
		Email:        "jane@student.edu",
		PasswordHash: hashPassword("Secret123"),
		FullName:     "Jane Doe",
		VisaType:     "F-1",
		LastLogin:    &now,
		CreatedAt:    now,
		IsActive:     true,
	}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.UserID, u.Email, u.PasswordHash, u.FullName, u.VisaType, 0, &now, now, true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), User{
		UserID: "user-2", Email: "jane@student.edu",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestPGRepoGetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("jane@student.edu").
		WillReturnRows(sqlmock.NewRows(userTestColumns).AddRow(
			"user-1", "jane@student.edu", hashPassword("Secret123"), "Jane Doe", "F-1",
			3, nil, created, true,
		))

	u, err := repo.GetByEmail(context.Background(), "jane@student.edu")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.UserID != "user-1" || u.LoginCount != 3 {
		t.Fatalf("user = %+v", u)
	}
	if u.LastLogin != nil {
		t.Fatalf("null last_login should stay nil, got %v", u.LastLogin)
	}
	if !u.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v", u.CreatedAt)
	}
}

func TestPGRepoGetByEmailNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing@student.edu").
		WillReturnRows(sqlmock.NewRows(userTestColumns))

	if _, err := repo.GetByEmail(context.Background(), "missing@student.edu"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGRepoRecordLogin(t *testing.T) {
	repo, mock := newMockRepo(t)

	at := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE users").
		WithArgs(4, at, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordLogin(context.Background(), "user-1", 4, at); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}

	mock.ExpectExec("UPDATE users").
		WithArgs(1, at, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.RecordLogin(context.Background(), "missing", 1, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
