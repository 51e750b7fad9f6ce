package ingest

import (
	"testing"

	"visatrack/internal/api"
)

// extraction builds a fully populated data set with high confidence,
// then applies the given per-field overrides.
func extraction(confidences map[string]float64) *api.ExtractedData {
	d := &api.ExtractedData{
		FullName:       api.ExtractedField{Value: "Jane Doe", Confidence: 0.95},
		SevisID:        api.ExtractedField{Value: "N0012345678", Confidence: 0.95},
		ProgramEndDate: api.ExtractedField{Value: "2026-06-30", Confidence: 0.95},
		SchoolName:     api.ExtractedField{Value: "Northeastern University", Confidence: 0.95},
		DegreeLevel:    api.ExtractedField{Value: "Master of Science", Confidence: 0.95},
		OPTEligible:    true,
	}
	for name, c := range confidences {
		d.Field(name).Confidence = c
	}
	return d
}

func TestClassifyThreshold(t *testing.T) {
	cases := []struct {
		name string
		conf map[string]float64
		want Outcome
	}{
		{"all high", nil, OutcomeSuccess},
		{"exactly at threshold", map[string]float64{"degree_level": 0.70}, OutcomeSuccess},
		{"just below threshold", map[string]float64{"degree_level": 0.6999}, OutcomeNeedsVerification},
		{"single low field routes to review", map[string]float64{"sevis_id": 0.55}, OutcomeNeedsVerification},
		{"zero confidence", map[string]float64{"school_name": 0}, OutcomeNeedsVerification},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(extraction(tc.conf)); got != tc.want {
				t.Errorf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}
