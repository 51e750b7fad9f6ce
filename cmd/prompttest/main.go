// Command prompttest runs the extraction prompt against a local document
// and prints the structured result, so prompt changes can be iterated on
// without the upload pipeline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"visatrack/internal/ai"
	"visatrack/internal/ai/gemini"
	"visatrack/internal/api"
	"visatrack/internal/processing"
	"visatrack/internal/shared/config"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to a document file (pdf, jpg or png)")
	docType := flag.String("type", "i20", fmt.Sprintf("Document type (%s)", strings.Join(api.DocumentTypes, ", ")))
	provider := flag.String("provider", cfg.AIProvider, "AI provider (gemini or placeholder)")
	model := flag.String("model", cfg.AIModel, "AI model")
	outPath := flag.String("out", "", "Path to write the JSON output (optional)")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}
	if !api.ValidDocumentType(*docType) {
		exitErr(fmt.Sprintf("unsupported document type: %s", *docType))
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read document: %v", err))
	}

	client, err := buildClient(cfg, *provider, *model)
	if err != nil {
		exitErr(err.Error())
	}

	data, findings, err := processing.DryRun(context.Background(), client, *docType, filepath.Base(*filePath), raw)
	if err != nil {
		exitErr(fmt.Sprintf("dry run: %v", err))
	}

	result := struct {
		ExtractedData    *api.ExtractedData    `json:"extracted_data"`
		ValidationErrors []api.ValidationError `json:"validation_errors,omitempty"`
	}{ExtractedData: data, ValidationErrors: findings}

	pretty, err := prettyJSON(result)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func buildClient(cfg config.Config, provider, model string) (ai.Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "gemini":
		return gemini.NewClient(cfg.GeminiAPIKey, model)
	case "placeholder":
		return ai.Placeholder{}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func prettyJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
