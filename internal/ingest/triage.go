package ingest

import "visatrack/internal/api"

// ConfidenceThreshold separates extractions the user can trust from
// ones that need review. It is applied per field: a single field below
// it routes the whole document to verification. Exactly at the
// threshold counts as trusted.
const ConfidenceThreshold = 0.70

// Outcome is the triage decision for a completed extraction.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNeedsVerification
)

// Classify routes a completed extraction by its minimum field
// confidence. Pure; no I/O.
func Classify(data *api.ExtractedData) Outcome {
	if data.MinConfidence() < ConfidenceThreshold {
		return OutcomeNeedsVerification
	}
	return OutcomeSuccess
}
