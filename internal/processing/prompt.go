package processing

import (
	"fmt"

	"visatrack/internal/ai"
)

// displayNames maps accepted document types to the names used in
// prompts and user-facing messages.
var displayNames = map[string]string{
	"i20":      "I-20 form",
	"i797":     "I-797 notice",
	"i765":     "I-765 application",
	"i983":     "I-983 training plan",
	"ead":      "EAD card",
	"passport": "passport",
}

func displayName(docType string) string {
	if name, ok := displayNames[docType]; ok {
		return name
	}
	return "immigration document"
}

const promptFields = `Required fields:
- full_name: Student's full legal name
- sevis_id: SEVIS ID number (format: N followed by 10 digits)
- program_end_date: Program end date (YYYY-MM-DD format)
- school_name: School/university name
- degree_level: Degree and major (e.g., "Master of Science in Computer Science")

Return format:
{
  "full_name": {"value": "John Doe", "confidence": 0.95},
  "sevis_id": {"value": "N0012345678", "confidence": 0.98},
  "program_end_date": {"value": "2025-12-15", "confidence": 0.92},
  "school_name": {"value": "Northeastern University", "confidence": 0.99},
  "degree_level": {"value": "Master of Science in Computer Science", "confidence": 0.93}
}`

// textRequest builds the structuring request for documents with a
// readable text layer.
func textRequest(docType, text string) ai.Request {
	prompt := fmt.Sprintf(`Extract the following fields from this %s text.
Return ONLY valid JSON with confidence scores (0.0 to 1.0) for each field.

%s

Document text:
%s

Return ONLY the JSON object, nothing else.`, displayName(docType), promptFields, text)
	return ai.Request{Parts: []ai.Part{ai.TextPart(prompt)}, JSONResponse: true}
}

// visionRequest builds the structuring request for images and for PDFs
// without a usable text layer; the raw document bytes ride along as an
// inline part.
func visionRequest(docType, mimeType string, data []byte) ai.Request {
	prompt := fmt.Sprintf(`Extract the following fields from this %s.
Return ONLY valid JSON with confidence scores (0.0 to 1.0) for each field.

%s

Return ONLY the JSON object, nothing else.`, displayName(docType), promptFields)
	return ai.Request{
		Parts:        []ai.Part{ai.TextPart(prompt), ai.ImagePart(mimeType, data)},
		JSONResponse: true,
	}
}
