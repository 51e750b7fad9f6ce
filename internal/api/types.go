// Package api defines the wire contract between the ingestion client and
// the backend, plus a REST client speaking it. The server handlers render
// these same types so the two sides cannot drift.
package api

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"visatrack/internal/timeline"
)

// DocumentStatus is the backend lifecycle status of a document.
type DocumentStatus string

const (
	StatusUploading         DocumentStatus = "uploading"
	StatusProcessing        DocumentStatus = "processing"
	StatusCompleted         DocumentStatus = "completed"
	StatusNeedsVerification DocumentStatus = "needs_verification"
	StatusFailed            DocumentStatus = "failed"
)

// Terminal reports whether no further backend transition will occur.
func (s DocumentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNeedsVerification, StatusFailed:
		return true
	}
	return false
}

// Processing stages reported while a document is in flight.
const (
	StageTextExtraction = "text_extraction"
	StageAIStructuring  = "ai_structuring"
	StageValidation     = "validation"
	StageComplete       = "complete"
)

// DocumentTypes is the closed set of accepted document categories.
var DocumentTypes = []string{"i20", "i797", "i765", "i983", "ead", "passport"}

// ValidDocumentType reports whether t is one of DocumentTypes.
func ValidDocumentType(t string) bool {
	for _, dt := range DocumentTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// ContentTypeFor maps an accepted upload's file extension to the MIME
// type declared during negotiation.
func ContentTypeFor(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}

// ExtractedField is a value with the model's confidence in it, the sole
// trust signal carried per field.
type ExtractedField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FieldNames lists the extracted fields in display order. Every completed
// extraction carries all of them.
var FieldNames = []string{
	"full_name",
	"sevis_id",
	"program_end_date",
	"school_name",
	"degree_level",
}

// ExtractedData is the structured result of processing one document:
// five extracted fields plus the derived OPT eligibility flag and, when
// the program end date parsed, the computed timeline.
type ExtractedData struct {
	FullName       ExtractedField       `json:"full_name"`
	SevisID        ExtractedField       `json:"sevis_id"`
	ProgramEndDate ExtractedField       `json:"program_end_date"`
	SchoolName     ExtractedField       `json:"school_name"`
	DegreeLevel    ExtractedField       `json:"degree_level"`
	OPTEligible    bool                 `json:"opt_eligible"`
	Timeline       *timeline.Assessment `json:"timeline,omitempty"`
}

// UnmarshalJSON decodes strictly: a payload missing any extracted field
// is a protocol violation, not a partial result.
func (d *ExtractedData) UnmarshalJSON(raw []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return err
	}
	for _, name := range FieldNames {
		if _, ok := keys[name]; !ok {
			return fmt.Errorf("extracted data missing field %q", name)
		}
	}
	type alias ExtractedData
	var a alias
	if err := json.Unmarshal(raw, &a); err != nil {
		return err
	}
	*d = ExtractedData(a)
	return nil
}

// Field returns the named extracted field, or nil for an unknown name.
func (d *ExtractedData) Field(name string) *ExtractedField {
	switch name {
	case "full_name":
		return &d.FullName
	case "sevis_id":
		return &d.SevisID
	case "program_end_date":
		return &d.ProgramEndDate
	case "school_name":
		return &d.SchoolName
	case "degree_level":
		return &d.DegreeLevel
	}
	return nil
}

// MinConfidence returns the lowest confidence across the extracted fields.
func (d *ExtractedData) MinConfidence() float64 {
	min := d.FullName.Confidence
	for _, name := range FieldNames[1:] {
		if c := d.Field(name).Confidence; c < min {
			min = c
		}
	}
	return min
}

// Validation severities attached by the processing pipeline.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// ValidationError is one issue the processing pipeline found in an
// extracted field.
type ValidationError struct {
	Field      string `json:"field"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Value      string `json:"value,omitempty"`
}

// UploadNegotiation is the backend's answer to an upload request: a
// fresh document id and a one-shot storage destination.
type UploadNegotiation struct {
	DocumentID string     `json:"document_id"`
	UploadURL  string     `json:"upload_url"`
	Fields     FormFields `json:"upload_fields"`
	ExpiresIn  int        `json:"expires_in,omitempty"`
}

// StatusSnapshot is one observation of a document's lifecycle state.
// ExtractedData and ValidationErrors are present only on completed and
// needs_verification; ErrorMessage only on failed.
type StatusSnapshot struct {
	DocumentID       string            `json:"document_id"`
	Status           DocumentStatus    `json:"status"`
	Stage            string            `json:"processing_stage,omitempty"`
	ExtractedData    *ExtractedData    `json:"extracted_data,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
}

// DocumentRecord is one row of the user's document list.
type DocumentRecord struct {
	ID            string         `json:"id"`
	DocumentType  string         `json:"document_type"`
	FileName      string         `json:"file_name"`
	Status        DocumentStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
}

// User is the profile rendered by the auth endpoints.
type User struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	VisaType   string     `json:"visa_type"`
	LoginCount int        `json:"login_count"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LoginResult pairs the profile with the first-login marker the client
// uses to route new users to onboarding.
type LoginResult struct {
	User         User `json:"user"`
	IsFirstLogin bool `json:"is_first_login"`
}

// PolicyUpdate is one tracked immigration policy change.
type PolicyUpdate struct {
	ID            string     `json:"policy_id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	ImpactLevel   string     `json:"impact_level"`
	AffectedVisas []string   `json:"affected_visas"`
	ActionItems   []string   `json:"action_items"`
	SourceURL     string     `json:"source_url,omitempty"`
	PublishedAt   *time.Time `json:"published_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PolicyFilters echoes the filters a policy listing was produced under.
type PolicyFilters struct {
	VisaType    string `json:"visa_type"`
	ImpactLevel string `json:"impact_level"`
	Limit       int    `json:"limit"`
}

// PolicyList is the policy listing response.
type PolicyList struct {
	Count          int            `json:"count"`
	Policies       []PolicyUpdate `json:"policies"`
	FiltersApplied PolicyFilters  `json:"filters_applied"`
}
