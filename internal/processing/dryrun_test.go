package processing

import (
	"context"
	"testing"
	"time"

	"visatrack/internal/api"
)

func TestDryRunCleanExtraction(t *testing.T) {
	end := time.Now().UTC().AddDate(0, 8, 0).Format("2006-01-02")
	client := &scriptedAI{answer: answerWith(t, map[string]api.ExtractedField{
		"program_end_date": {Value: end, Confidence: 0.93},
	})}

	data, findings, err := DryRun(context.Background(), client, "i20", "i20.pdf", buildPDF(t, pdfText))
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("unexpected findings: %+v", findings)
	}
	if data.FullName.Value != "Jane Doe" {
		t.Errorf("full_name = %q", data.FullName.Value)
	}
	if !data.OPTEligible {
		t.Error("future end date should be OPT eligible")
	}
	if data.Timeline == nil {
		t.Error("clean extraction should carry a timeline")
	}
	if len(client.reqs) != 1 {
		t.Fatalf("generate calls = %d", len(client.reqs))
	}
}

func TestDryRunSurfacesFindings(t *testing.T) {
	client := &scriptedAI{answer: answerWith(t, map[string]api.ExtractedField{
		"sevis_id": {Value: "BAD-FORMAT", Confidence: 0.98},
	})}

	data, findings, err := DryRun(context.Background(), client, "i20", "i20.pdf", buildPDF(t, pdfText))
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(findings) == 0 {
		t.Fatal("invalid SEVIS ID should produce a finding")
	}
	if data.Timeline != nil {
		t.Error("flagged extraction must not be enriched")
	}
}

func TestDryRunRejectsUnsupportedFile(t *testing.T) {
	client := &scriptedAI{}
	_, _, err := DryRun(context.Background(), client, "i20", "notes.txt", []byte("plain text"))
	if err == nil {
		t.Fatal("expected an error for an unsupported file")
	}
	if len(client.reqs) != 0 {
		t.Fatal("unsupported files must not reach the model")
	}
}

func TestDryRunBadModelAnswer(t *testing.T) {
	client := &scriptedAI{answer: "sorry, I cannot help with that"}
	_, _, err := DryRun(context.Background(), client, "i20", "i20.pdf", buildPDF(t, pdfText))
	if err == nil {
		t.Fatal("expected an error for a non-JSON answer")
	}
}
