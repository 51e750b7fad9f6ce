package processing

import (
	"context"
	"errors"
	"time"

	"visatrack/internal/ai"
	"visatrack/internal/api"
	"visatrack/internal/documents"
	"visatrack/internal/timeline"
)

// DryRun runs structuring and validation on an in-memory payload without
// touching storage or document records, so prompts can be iterated on
// against local files. A clean extraction is enriched the same way the
// full pipeline does it.
func DryRun(ctx context.Context, client ai.Client, docType, fileName string, raw []byte) (*api.ExtractedData, []api.ValidationError, error) {
	p := &Processor{AI: client}

	req, failMsg := p.buildRequest(ctx, documents.Document{DocumentType: docType, FileName: fileName}, raw)
	if failMsg != "" {
		return nil, nil, errors.New(failMsg)
	}

	answer, err := client.Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	data, ok := decodeExtraction(answer)
	if !ok {
		return nil, nil, errors.New("model answer is not valid extraction JSON")
	}

	now := time.Now().UTC()
	findings := validate(data, now)
	if len(findings) == 0 {
		data.OPTEligible = timeline.Eligible(data.ProgramEndDate.Value, now)
		if assessment, err := timeline.AssessAt(data.ProgramEndDate.Value, now); err == nil {
			data.Timeline = assessment
		}
	}
	return data, findings, nil
}
