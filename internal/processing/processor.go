// Package processing runs the worker-side extraction pipeline for one
// stored document: text extraction, AI structuring, validation, and the
// terminal status write.
package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"visatrack/internal/ai"
	"visatrack/internal/api"
	"visatrack/internal/documents"
	"visatrack/internal/extract"
	"visatrack/internal/shared/metrics"
	"visatrack/internal/shared/storage/object"
	"visatrack/internal/shared/telemetry"
	"visatrack/internal/timeline"
)

const (
	// minTextLength is the smallest extracted text considered usable;
	// anything shorter is treated as a scan and sent to the vision model.
	minTextLength = 100
	// maxPromptText caps how much document text rides along in the prompt.
	maxPromptText = 8000
)

// Processor drives a document through the extraction stages and records
// the outcome.
type Processor struct {
	Repo  documents.Repo
	Store object.ObjectStore
	AI    ai.Client

	// Now overrides the clock in tests.
	Now func() time.Time
}

func New(repo documents.Repo, store object.ObjectStore, client ai.Client) *Processor {
	return &Processor{Repo: repo, Store: store, AI: client}
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Process runs the pipeline for the given document. Pipeline failures
// become a terminal failed status rather than a returned error; the
// error return covers infrastructure problems only, so queue consumers
// retry the right cases.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, err := p.Repo.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("process document %s: %w", documentID, err)
	}

	metrics.IncProcessingStarted()
	telemetry.Info("processing.started", map[string]any{
		"request_id":    telemetry.RequestIDFrom(ctx),
		"document_id":   doc.ID,
		"document_type": doc.DocumentType,
	})

	start := time.Now()
	res := p.run(ctx, doc)
	res.ProcessedAt = p.now()

	if err := p.Repo.SetResult(ctx, doc.ID, res); err != nil {
		return fmt.Errorf("process document %s: record result: %w", documentID, err)
	}

	metrics.ObserveProcessingDurationMs(float64(time.Since(start).Milliseconds()))
	switch res.Status {
	case api.StatusCompleted:
		metrics.IncProcessingCompleted()
	case api.StatusNeedsVerification:
		metrics.IncProcessingNeedsReview()
	default:
		metrics.IncProcessingFailed()
	}

	if res.Status == api.StatusFailed {
		telemetry.Error("processing.failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"document_id": doc.ID,
			"stage":       res.Stage,
			"error":       res.ErrorMessage,
		})
		return nil
	}
	telemetry.Info("processing.finished", map[string]any{
		"request_id":  telemetry.RequestIDFrom(ctx),
		"document_id": doc.ID,
		"status":      string(res.Status),
	})
	return nil
}

func (p *Processor) run(ctx context.Context, doc documents.Document) documents.Result {
	raw, err := p.readObject(ctx, doc.StorageKey)
	if err != nil {
		telemetry.Error("processing.read_failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"document_id": doc.ID,
			"storage_key": doc.StorageKey,
			"error":       err.Error(),
		})
		return failedResult(api.StageTextExtraction, "Document not found or cannot be accessed. Please try uploading again.")
	}

	req, failMsg := p.buildRequest(ctx, doc, raw)
	if failMsg != "" {
		return failedResult(api.StageTextExtraction, failMsg)
	}

	p.advance(ctx, doc.ID, api.StageAIStructuring)

	metrics.IncAIRequests()
	answer, err := p.AI.Generate(ctx, req)
	if err != nil {
		metrics.IncAIRequestFailures()
		telemetry.Error("processing.ai_failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		return failedResult(api.StageAIStructuring, "AI processing failed. Please try again or contact support.")
	}

	data, ok := decodeExtraction(answer)
	if !ok {
		return failedResult(api.StageAIStructuring, "AI response could not be parsed. Please try again.")
	}

	p.advance(ctx, doc.ID, api.StageValidation)

	findings := validate(data, p.now())
	if critical := criticalFields(findings); len(critical) > 0 {
		res := failedResult(api.StageValidation, "Critical fields missing or invalid: "+strings.Join(critical, ", "))
		res.ValidationErrors = encodeJSON(findings)
		return res
	}

	if len(findings) > 0 {
		return documents.Result{
			Status:           api.StatusNeedsVerification,
			Stage:            api.StageValidation,
			ExtractedData:    encodeJSON(data),
			ValidationErrors: encodeJSON(findings),
		}
	}

	now := p.now()
	data.OPTEligible = timeline.Eligible(data.ProgramEndDate.Value, now)
	if assessment, err := timeline.AssessAt(data.ProgramEndDate.Value, now); err == nil {
		data.Timeline = assessment
	}

	return documents.Result{
		Status:        api.StatusCompleted,
		Stage:         api.StageComplete,
		ExtractedData: encodeJSON(data),
	}
}

// buildRequest resolves the document to a model request. PDFs with a
// readable text layer go as prompt text; images and scanned PDFs are
// attached as inline bytes. A non-empty failMsg means the file cannot
// be processed at all.
func (p *Processor) buildRequest(ctx context.Context, doc documents.Document, raw []byte) (req ai.Request, failMsg string) {
	mime := extract.DetectMime(doc.FileName, raw)
	switch {
	case mime == extract.MimePDF:
		text, err := extract.ExtractTextFromBytes(ctx, raw, mime)
		if err != nil || len(text) < minTextLength {
			return visionRequest(doc.DocumentType, mime, raw), ""
		}
		if len(text) > maxPromptText {
			text = text[:maxPromptText]
		}
		return textRequest(doc.DocumentType, text), ""
	case extract.IsImage(mime):
		return visionRequest(doc.DocumentType, mime, raw), ""
	default:
		return ai.Request{}, "Document type not supported. Please upload a PDF or image file."
	}
}

func (p *Processor) readObject(ctx context.Context, key string) ([]byte, error) {
	body, err := p.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// advance records the visible pipeline stage. A stale stage only costs
// status readers detail, so failures are logged, not fatal.
func (p *Processor) advance(ctx context.Context, documentID, stage string) {
	if err := p.Repo.SetStage(ctx, documentID, stage); err != nil {
		telemetry.Error("processing.stage_update_failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"document_id": documentID,
			"stage":       stage,
			"error":       err.Error(),
		})
	}
}

// decodeExtraction parses the model's JSON answer and normalizes it so
// every known field is present, defaulting absent ones to an empty value
// with zero confidence.
func decodeExtraction(answer string) (*api.ExtractedData, bool) {
	var fields map[string]api.ExtractedField
	if err := json.Unmarshal([]byte(answer), &fields); err != nil {
		return nil, false
	}
	data := &api.ExtractedData{}
	for _, name := range api.FieldNames {
		if f, ok := fields[name]; ok {
			*data.Field(name) = f
		}
	}
	return data, true
}

func failedResult(stage, message string) documents.Result {
	return documents.Result{
		Status:       api.StatusFailed,
		Stage:        stage,
		ErrorMessage: message,
	}
}

func encodeJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
