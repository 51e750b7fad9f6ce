package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Service encapsulates health-related checks.
type Service struct {
	DB  *sql.DB
	Env string
}

// NewService constructs a new health service. A nil database means the
// process runs on in-memory repositories.
func NewService(db *sql.DB, env string) *Service {
	return &Service{DB: db, Env: env}
}

// Status returns the health payload. The process is reported healthy as
// long as it serves; the database field tells operators what it is
// backed by right now.
func (s *Service) Status(ctx context.Context) map[string]any {
	database := "memory"
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			database = "unreachable"
		} else {
			database = "connected"
		}
	}
	return map[string]any{
		"status":      "healthy",
		"environment": s.Env,
		"database":    database,
	}
}
