package ai

import (
	"context"
	"strings"
)

// Placeholder is a deterministic stand-in for a real provider, used in
// dev environments with no API key. It answers the prompts this service
// sends with canned JSON; anything else gets an empty object.
type Placeholder struct{}

const placeholderExtraction = `{
  "full_name": {"value": "Jane Student", "confidence": 0.55},
  "sevis_id": {"value": "N0012345678", "confidence": 0.55},
  "program_end_date": {"value": "2027-05-15", "confidence": 0.55},
  "school_name": {"value": "Placeholder University", "confidence": 0.55},
  "degree_level": {"value": "Master's", "confidence": 0.55}
}`

const placeholderPolicy = `{
  "affected_visas": ["F-1"],
  "impact_level": "Low",
  "summary": "Placeholder analysis; configure an AI provider for real results.",
  "action_items": ["Configure GEMINI_API_KEY"]
}`

func (Placeholder) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prompt := req.Text()
	switch {
	case strings.Contains(prompt, "program_end_date"):
		return placeholderExtraction, nil
	case strings.Contains(prompt, "affected_visas"):
		return placeholderPolicy, nil
	}
	return "{}", nil
}

var _ Client = Placeholder{}
