package documents

import (
	"encoding/json"
	"time"

	"visatrack/internal/api"
)

// Document is one uploaded immigration document and the state of its
// extraction pipeline.
type Document struct {
	ID               string
	UserID           string
	DocumentType     string
	FileName         string
	StorageKey       string
	Status           api.DocumentStatus
	ProcessingStage  string
	SizeBytes        int64
	ExtractedData    json.RawMessage
	ValidationErrors json.RawMessage
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProcessedAt      *time.Time
}

// Result is the terminal outcome of one processing run.
type Result struct {
	Status           api.DocumentStatus
	Stage            string
	ExtractedData    json.RawMessage
	ValidationErrors json.RawMessage
	ErrorMessage     string
	ProcessedAt      time.Time
}
