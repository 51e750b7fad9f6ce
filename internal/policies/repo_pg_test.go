package policies

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var policyColumns = []string{
	"id", "title", "summary", "impact_level", "affected_visas",
	"action_items", "source_url", "published_at", "created_at",
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

func TestPGRepoSave(t *testing.T) {
	repo, mock := newMockRepo(t)

	published := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	p := PolicyUpdate{
		ID:            "policy-1",
		Title:         "New OPT guidance",
		Summary:       "USCIS clarified the unemployment clock for OPT holders.",
		ImpactLevel:   "High",
		AffectedVisas: []string{"F-1", "OPT"},
		SourceURL:     "https://www.uscis.gov/newsroom/opt-guidance",
		PublishedAt:   published,
		CreatedAt:     created,
	}

	mock.ExpectExec("INSERT INTO policy_updates").
		WithArgs(
			p.ID,
			p.Title,
			p.Summary,
			p.ImpactLevel,
			[]byte(`["F-1","OPT"]`),
			[]byte(`[]`), // nil action items stay a jsonb array
			p.SourceURL,
			published,
			created,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSaveDuplicateURL(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO policy_updates").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), PolicyUpdate{
		ID:        "policy-2",
		Title:     "New OPT guidance",
		SourceURL: "https://www.uscis.gov/newsroom/opt-guidance",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListDecodesJSONColumns(t *testing.T) {
	repo, mock := newMockRepo(t)

	published := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(policyColumns).
		AddRow("policy-1", "New OPT guidance", "Summary one", "High",
			[]byte(`["F-1","OPT"]`), []byte(`["Talk to your DSO"]`),
			"https://www.uscis.gov/newsroom/opt-guidance", published, created).
		AddRow("policy-2", "H-1B fee update", "Summary two", "Medium",
			[]byte(`[]`), []byte(`[]`),
			"https://www.uscis.gov/newsroom/h1b-fees", nil, created)

	mock.ExpectQuery("SELECT (.+) FROM policy_updates").
		WithArgs(100).
		WillReturnRows(rows)

	found, err := repo.List(context.Background(), 100)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("len = %d", len(found))
	}
	if got := found[0].AffectedVisas; len(got) != 2 || got[0] != "F-1" || got[1] != "OPT" {
		t.Fatalf("affected visas = %v", got)
	}
	if got := found[0].ActionItems; len(got) != 1 || got[0] != "Talk to your DSO" {
		t.Fatalf("action items = %v", got)
	}
	if !found[0].PublishedAt.Equal(published) {
		t.Fatalf("published_at = %v", found[0].PublishedAt)
	}
	if !found[1].PublishedAt.IsZero() {
		t.Fatalf("null published_at should scan as zero, got %v", found[1].PublishedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
