package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"visatrack/internal/api"
)

// Backend is the slice of the REST API the pipeline drives.
type Backend interface {
	NegotiateUpload(ctx context.Context, fileName, fileType, documentType string) (*api.UploadNegotiation, error)
	Status(ctx context.Context, documentID string) (*api.StatusSnapshot, error)
	SubmitCorrections(ctx context.Context, documentID string, corrections map[string]string) error
	ListDocuments(ctx context.Context) ([]api.DocumentRecord, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

var _ Backend = (*api.Client)(nil)

// IngestRequest is one file to drive through the pipeline.
type IngestRequest struct {
	FileName     string
	DocumentType string
	Size         int64
	Content      io.Reader
}

// Pipeline sequences admission, negotiation, transfer, polling and
// triage for one upload attempt at a time, and maintains the user's
// document list. It never retries and cannot be cancelled once an
// attempt is running; every failure lands in Failed and a fresh attempt
// starts from there.
type Pipeline struct {
	Backend  Backend
	Uploader *http.Client
	Guard    Guard

	// Polling knobs, zero values defaulted by the Poller.
	PollInterval time.Duration
	PollAttempts int
	Sleep        func(ctx context.Context, d time.Duration) error

	// OnState observes every state change; OnSnapshot observes raw
	// polling snapshots, including intermediate processing ones.
	OnState    func(State)
	OnSnapshot func(*api.StatusSnapshot)

	mu        sync.Mutex
	state     State
	documents []api.DocumentRecord
	running   bool
}

// State returns the current ingestion state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return Idle{}
	}
	return p.state
}

// Documents returns the last loaded document list.
func (p *Pipeline) Documents() []api.DocumentRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.DocumentRecord, len(p.documents))
	copy(out, p.documents)
	return out
}

// Ingest drives one file to a terminal state and returns it. A second
// call while an attempt is running returns ErrIngestInProgress; calls
// from any terminal state start a fresh attempt.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (State, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrIngestInProgress
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	if err := p.Guard.Check(req.FileName, req.Size); err != nil {
		return p.fail(err), err
	}

	p.setState(Uploading{FileName: req.FileName, Progress: 0})

	neg, err := p.Backend.NegotiateUpload(ctx, req.FileName, api.ContentTypeFor(req.FileName), req.DocumentType)
	if err != nil {
		return p.fail(err), err
	}

	onProgress := func(percent int) {
		p.setState(Uploading{FileName: req.FileName, Progress: percent})
	}
	if err := Transfer(ctx, p.Uploader, neg, req.FileName, req.Content, onProgress); err != nil {
		return p.fail(err), err
	}

	p.setState(Processing{DocumentID: neg.DocumentID, FileName: req.FileName})

	poller := &Poller{
		Backend:     p.Backend,
		Interval:    p.PollInterval,
		MaxAttempts: p.PollAttempts,
		Sleep:       p.Sleep,
		OnStatus:    p.OnSnapshot,
	}
	snap, err := poller.Wait(ctx, neg.DocumentID)
	if err != nil {
		return p.fail(err), err
	}

	state, err := resolveTerminal(neg.DocumentID, snap)
	if err != nil {
		return p.fail(err), err
	}
	p.setState(state)

	// The document list now contains this upload; read-replace it.
	p.reloadDocuments(ctx)
	return state, nil
}

// resolveTerminal maps a terminal snapshot onto the outcome state. A
// completed or needs_verification snapshot without extracted data is a
// backend protocol violation, not a valid outcome.
func resolveTerminal(documentID string, snap *api.StatusSnapshot) (State, error) {
	switch snap.Status {
	case api.StatusCompleted, api.StatusNeedsVerification:
		if snap.ExtractedData == nil {
			return nil, fmt.Errorf("backend returned %s without extracted data", snap.Status)
		}
		if snap.Status == api.StatusNeedsVerification || Classify(snap.ExtractedData) == OutcomeNeedsVerification {
			return NeedsVerification{DocumentID: documentID, Data: *snap.ExtractedData}, nil
		}
		return Success{DocumentID: documentID, Data: *snap.ExtractedData}, nil
	case api.StatusFailed:
		msg := snap.ErrorMessage
		if msg == "" {
			msg = "processing failed"
		}
		return nil, errors.New(msg)
	default:
		return nil, fmt.Errorf("unexpected terminal status %q", snap.Status)
	}
}

// SubmitCorrections sends user-edited values for a document awaiting
// review. Success resets the pipeline to Idle and reloads the document
// list exactly once; failure leaves the current state untouched so the
// user can retry.
func (p *Pipeline) SubmitCorrections(ctx context.Context, documentID string, corrections map[string]string) error {
	if err := p.Backend.SubmitCorrections(ctx, documentID, corrections); err != nil {
		return err
	}
	p.setState(Idle{})
	p.reloadDocuments(ctx)
	return nil
}

// Acknowledge dismisses a terminal outcome and returns to Idle. It is a
// no-op while an attempt is in flight.
func (p *Pipeline) Acknowledge() {
	switch p.State().(type) {
	case Success, NeedsVerification, Failed:
		p.setState(Idle{})
	}
}

// LoadDocuments read-replaces the document list from the backend. A
// load failure degrades to an empty list and is returned for optional
// surfacing; it is never fatal to the caller's view.
func (p *Pipeline) LoadDocuments(ctx context.Context) ([]api.DocumentRecord, error) {
	docs, err := p.Backend.ListDocuments(ctx)
	if err != nil {
		docs = nil
	}
	p.mu.Lock()
	p.documents = docs
	p.mu.Unlock()
	return p.Documents(), err
}

// Delete removes a document and read-replaces the list.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if err := p.Backend.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	p.reloadDocuments(ctx)
	return nil
}

func (p *Pipeline) fail(err error) State {
	state := Failed{Err: err}
	p.setState(state)
	return state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	cb := p.OnState
	p.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (p *Pipeline) reloadDocuments(ctx context.Context) {
	docs, err := p.Backend.ListDocuments(ctx)
	if err != nil {
		docs = nil
	}
	p.mu.Lock()
	p.documents = docs
	p.mu.Unlock()
}
