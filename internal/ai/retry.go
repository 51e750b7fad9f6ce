package ai

import (
	"context"
	"time"
)

const defaultAttempts = 3

// WithRetry wraps a client with bounded retries on transient failures.
// The wait before attempt n is 2^n seconds.
func WithRetry(inner Client, attempts int) Client {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &retryClient{inner: inner, attempts: attempts}
}

type retryClient struct {
	inner    Client
	attempts int
	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c *retryClient) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *retryClient) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return "", err
			}
		}
		out, err := c.inner.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if !Retryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
