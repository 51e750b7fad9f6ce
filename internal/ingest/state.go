// Package ingest drives a file through the document ingestion protocol:
// admission, upload negotiation, direct-to-storage transfer, bounded
// status polling and confidence triage.
package ingest

import "visatrack/internal/api"

// State is the client-side ingestion state. Exactly one concrete state
// is active at a time; the unexported marker keeps the set closed so a
// renderer can switch over every case.
type State interface {
	ingestState()
}

// Idle is the initial state and the state after a terminal outcome is
// acknowledged.
type Idle struct{}

// Uploading covers negotiation and the storage transfer. Progress is a
// whole percentage in [0,100], non-decreasing within one attempt.
type Uploading struct {
	FileName string
	Progress int
}

// Processing means the bytes are stored and the backend pipeline is
// running; the document id is known from negotiation.
type Processing struct {
	DocumentID string
	FileName   string
}

// Success carries a completed extraction whose every field cleared the
// confidence threshold.
type Success struct {
	DocumentID string
	Data       api.ExtractedData
}

// NeedsVerification carries a completed extraction with at least one
// low-confidence field awaiting user review.
type NeedsVerification struct {
	DocumentID string
	Data       api.ExtractedData
}

// Failed is the single surface for every ingestion error. A fresh
// attempt may start directly from here.
type Failed struct {
	Err error
}

func (Idle) ingestState()              {}
func (Uploading) ingestState()         {}
func (Processing) ingestState()        {}
func (Success) ingestState()           {}
func (NeedsVerification) ingestState() {}
func (Failed) ingestState()            {}
