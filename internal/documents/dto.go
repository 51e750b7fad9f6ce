package documents

import (
	"encoding/json"
	"time"

	"visatrack/internal/api"
)

// statusResponse is the outward snapshot of a document's lifecycle.
// Extraction payloads ride along only on terminal statuses that have them.
type statusResponse struct {
	DocumentID       string             `json:"document_id"`
	DocumentType     string             `json:"document_type"`
	FileName         string             `json:"file_name"`
	Status           api.DocumentStatus `json:"status"`
	ProcessingStage  string             `json:"processing_stage,omitempty"`
	Message          string             `json:"message,omitempty"`
	ExtractedData    json.RawMessage    `json:"extracted_data,omitempty"`
	ValidationErrors json.RawMessage    `json:"validation_errors,omitempty"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ProcessedAt      *time.Time         `json:"processed_at,omitempty"`
}

func toStatusResponse(doc Document) statusResponse {
	resp := statusResponse{
		DocumentID:      doc.ID,
		DocumentType:    doc.DocumentType,
		FileName:        doc.FileName,
		Status:          doc.Status,
		ProcessingStage: doc.ProcessingStage,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		ProcessedAt:     doc.ProcessedAt,
	}

	switch doc.Status {
	case api.StatusCompleted:
		resp.Message = "Document processed successfully"
		resp.ExtractedData = doc.ExtractedData
		resp.ValidationErrors = doc.ValidationErrors
	case api.StatusNeedsVerification:
		resp.Message = "Document processed but needs verification"
		resp.ExtractedData = doc.ExtractedData
		resp.ValidationErrors = doc.ValidationErrors
	case api.StatusProcessing:
		stage := doc.ProcessingStage
		if stage == "" {
			stage = "unknown stage"
		}
		resp.Message = "Processing document: " + stage
	case api.StatusUploading:
		resp.Message = "Document is being uploaded"
	case api.StatusFailed:
		resp.ErrorMessage = doc.ErrorMessage
		if resp.ErrorMessage == "" {
			resp.ErrorMessage = "Processing failed"
		}
		resp.ValidationErrors = doc.ValidationErrors
	default:
		resp.Message = "Document status: " + string(doc.Status)
	}
	return resp
}

// documentSummary is one row of the document listing.
type documentSummary struct {
	ID            string             `json:"id"`
	DocumentType  string             `json:"document_type"`
	FileName      string             `json:"file_name"`
	Status        api.DocumentStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	ProcessedAt   *time.Time         `json:"processed_at,omitempty"`
	ExtractedData json.RawMessage    `json:"extracted_data,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
}

func toSummary(doc Document) documentSummary {
	summary := documentSummary{
		ID:           doc.ID,
		DocumentType: doc.DocumentType,
		FileName:     doc.FileName,
		Status:       doc.Status,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		ProcessedAt:  doc.ProcessedAt,
	}
	switch doc.Status {
	case api.StatusCompleted, api.StatusNeedsVerification:
		summary.ExtractedData = doc.ExtractedData
	case api.StatusFailed:
		summary.ErrorMessage = doc.ErrorMessage
	}
	return summary
}
