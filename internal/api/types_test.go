package api

import (
	"encoding/json"
	"testing"
)

func TestTerminalStatuses(t *testing.T) {
	want := map[DocumentStatus]bool{
		StatusUploading:         false,
		StatusProcessing:        false,
		StatusCompleted:         true,
		StatusNeedsVerification: true,
		StatusFailed:            true,
	}
	for status, terminal := range want {
		if got := status.Terminal(); got != terminal {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, terminal)
		}
	}
}

func TestValidDocumentType(t *testing.T) {
	for _, dt := range DocumentTypes {
		if !ValidDocumentType(dt) {
			t.Errorf("%s should be accepted", dt)
		}
	}
	if ValidDocumentType("resume") {
		t.Error("an unknown category should be rejected")
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"i20.pdf":     "application/pdf",
		"scan.JPG":    "image/jpeg",
		"photo.jpeg":  "image/jpeg",
		"card.png":    "image/png",
		"mystery.bin": "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestMinConfidence(t *testing.T) {
	d := ExtractedData{
		FullName:       ExtractedField{Value: "Jane Doe", Confidence: 0.95},
		SevisID:        ExtractedField{Value: "N0012345678", Confidence: 0.55},
		ProgramEndDate: ExtractedField{Value: "2026-06-30", Confidence: 0.92},
		SchoolName:     ExtractedField{Value: "NEU", Confidence: 0.99},
		DegreeLevel:    ExtractedField{Value: "MS", Confidence: 0.93},
	}
	if got := d.MinConfidence(); got != 0.55 {
		t.Errorf("MinConfidence = %v, want 0.55", got)
	}
}

func TestExtractedDataFieldLookup(t *testing.T) {
	var d ExtractedData
	for _, name := range FieldNames {
		if d.Field(name) == nil {
			t.Errorf("Field(%s) should resolve", name)
		}
	}
	if d.Field("opt_eligible") != nil {
		t.Error("the derived flag is not an extracted field")
	}
}

func TestExtractedDataStrictDecode(t *testing.T) {
	var d ExtractedData
	err := json.Unmarshal([]byte(fullExtraction), &d)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if d.DegreeLevel.Value != "Master of Science" {
		t.Errorf("degree_level = %+v", d.DegreeLevel)
	}

	if err := json.Unmarshal([]byte(`{"full_name":{"value":"x","confidence":1}}`), &d); err == nil {
		t.Fatal("expected an error when extracted fields are missing")
	}
}
