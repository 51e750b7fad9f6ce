// Package ai abstracts the model providers used for document extraction
// and policy analysis.
package ai

import (
	"context"
	"errors"
	"strings"
)

// Part is one piece of model input: text, or inline bytes for scanned
// documents.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart wraps prompt text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart wraps inline image bytes.
func ImagePart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// Request is a single generation call.
type Request struct {
	Parts []Part
	// JSONResponse asks the provider for a bare JSON body.
	JSONResponse bool
}

// Text concatenates the request's text parts, used by providers and
// stubs that key off the prompt.
func (r Request) Text() string {
	var b strings.Builder
	for _, p := range r.Parts {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// Client abstracts model providers.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned when no provider is wired.
var ErrNotConfigured = errors.New("ai provider is not configured")

// RetryableError marks a transient failure worth retrying: transport
// errors, 5xx responses and rate limits.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable reports whether err is marked transient.
func Retryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
