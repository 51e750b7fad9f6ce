package ingest

import (
	"context"
	"time"

	"visatrack/internal/api"
)

// Polling budget. 30 attempts at a fixed 2 s delay gives the backend
// about a minute to finish before the attempt is declared dead.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 30
)

// StatusBackend is the slice of the API the poller needs.
type StatusBackend interface {
	Status(ctx context.Context, documentID string) (*api.StatusSnapshot, error)
}

// Poller waits for a document to reach a terminal status. Zero-value
// Interval, MaxAttempts and Sleep fall back to the defaults, so the
// zero Poller with a Backend is usable as is.
type Poller struct {
	Backend     StatusBackend
	Interval    time.Duration
	MaxAttempts int

	// Sleep is the wait between attempts, replaceable in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnStatus observes every snapshot the backend returns, including
	// non-terminal ones, in arrival order.
	OnStatus func(*api.StatusSnapshot)
}

// Wait blocks until the document reports a terminal status and returns
// that snapshot. Each attempt is one wait followed by one status
// request; a failed request consumes the attempt and polling continues.
// An exhausted budget returns ErrProcessingTimeout.
func (p *Poller) Wait(ctx context.Context, documentID string) (*api.StatusSnapshot, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		snap, err := p.Backend.Status(ctx, documentID)
		if err != nil {
			continue
		}
		if p.OnStatus != nil {
			p.OnStatus(snap)
		}
		if snap.Status.Terminal() {
			return snap, nil
		}
	}
	return nil, ErrProcessingTimeout
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
