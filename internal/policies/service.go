package policies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"visatrack/internal/ai"
	"visatrack/internal/shared/metrics"
	"visatrack/internal/shared/telemetry"
)

const (
	// refreshCap bounds how many articles one refresh run analyzes.
	refreshCap = 10
	// scanCap bounds how many stored policies a list call filters over.
	scanCap = 100
	// maxAnalysisText caps the article text passed to the model.
	maxAnalysisText = 8000
)

// Service answers policy queries and runs the refresh job.
type Service struct {
	Repo   Repo
	Source Source
	AI     ai.Client

	// Now is overridden in tests.
	Now func() time.Time
}

func NewService(repo Repo, source Source, client ai.Client) *Service {
	return &Service{Repo: repo, Source: source, AI: client}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// List returns stored policies newest first after applying the visa and
// impact filters. Filtering happens here rather than in SQL so the two
// jsonb shapes stay private to the repo.
func (s *Service) List(ctx context.Context, visaType, impactLevel string, limit int) ([]PolicyUpdate, error) {
	stored, err := s.Repo.List(ctx, scanCap)
	if err != nil {
		return nil, err
	}
	out := make([]PolicyUpdate, 0, limit)
	for _, p := range stored {
		if visaType != "" && !containsString(p.AffectedVisas, visaType) {
			continue
		}
		if impactLevel != "" && !strings.EqualFold(p.ImpactLevel, impactLevel) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// RefreshStats summarizes one refresh run.
type RefreshStats struct {
	Scraped    int `json:"scraped"`
	Analyzed   int `json:"analyzed"`
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Refresh scrapes the configured sources, analyzes announcements and
// stores the new ones. Per-article failures are counted, not fatal; the
// returned error covers only unreachable sources and similar run-level
// problems.
func (s *Service) Refresh(ctx context.Context) (RefreshStats, error) {
	var stats RefreshStats

	articles, err := s.Source.Articles(ctx)
	if err != nil {
		metrics.IncPolicyJobsFailed()
		return stats, err
	}
	stats.Scraped = len(articles)
	if len(articles) == 0 {
		metrics.IncPolicyJobsCompleted()
		return stats, nil
	}
	if len(articles) > refreshCap {
		articles = articles[:refreshCap]
	}

	for _, article := range articles {
		content, err := s.Source.ArticleText(ctx, article.URL)
		if err != nil || strings.TrimSpace(content) == "" {
			// Analyze the headline alone rather than dropping the article.
			content = article.Title
		}

		result, err := s.analyze(ctx, article.Title, content)
		if err != nil {
			telemetry.Error("policies.analysis_failed", map[string]any{
				"request_id": telemetry.RequestIDFrom(ctx),
				"source_url": article.URL,
				"error":      err.Error(),
			})
			stats.Errors++
			continue
		}
		stats.Analyzed++

		policy := PolicyUpdate{
			ID:            uuid.NewString(),
			Title:         article.Title,
			Summary:       result.Summary,
			ImpactLevel:   result.ImpactLevel,
			AffectedVisas: result.AffectedVisas,
			ActionItems:   result.ActionItems,
			SourceURL:     article.URL,
			PublishedAt:   article.PublishedAt,
			CreatedAt:     s.now(),
		}
		switch err := s.Repo.Save(ctx, policy); {
		case errors.Is(err, ErrDuplicate):
			stats.Duplicates++
		case err != nil:
			telemetry.Error("policies.save_failed", map[string]any{
				"request_id": telemetry.RequestIDFrom(ctx),
				"source_url": article.URL,
				"error":      err.Error(),
			})
			stats.Errors++
		default:
			stats.Saved++
			telemetry.Info("policies.saved", map[string]any{
				"request_id":   telemetry.RequestIDFrom(ctx),
				"policy_id":    policy.ID,
				"impact_level": policy.ImpactLevel,
			})
		}
	}

	metrics.IncPolicyJobsCompleted()
	telemetry.Info("policies.refresh_complete", map[string]any{
		"request_id": telemetry.RequestIDFrom(ctx),
		"scraped":    stats.Scraped,
		"analyzed":   stats.Analyzed,
		"saved":      stats.Saved,
		"duplicates": stats.Duplicates,
		"errors":     stats.Errors,
	})
	return stats, nil
}

type analysis struct {
	AffectedVisas []string `json:"affected_visas"`
	ImpactLevel   string   `json:"impact_level"`
	Summary       string   `json:"summary"`
	ActionItems   []string `json:"action_items"`
}

func (s *Service) analyze(ctx context.Context, title, content string) (analysis, error) {
	metrics.IncAIRequests()
	answer, err := s.AI.Generate(ctx, analysisRequest(title, content))
	if err != nil {
		metrics.IncAIRequestFailures()
		return analysis{}, fmt.Errorf("analyze policy: %w", err)
	}

	var a analysis
	if err := json.Unmarshal([]byte(answer), &a); err != nil {
		return analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if strings.TrimSpace(a.Summary) == "" {
		return analysis{}, errors.New("analysis missing summary")
	}
	if !containsString(analysisImpactLevels, a.ImpactLevel) {
		return analysis{}, fmt.Errorf("invalid impact level %q", a.ImpactLevel)
	}
	for _, visa := range a.AffectedVisas {
		if !containsString(AllowedVisaTypes, visa) {
			return analysis{}, fmt.Errorf("invalid visa type %q", visa)
		}
	}
	return a, nil
}

func analysisRequest(title, content string) ai.Request {
	if len(content) > maxAnalysisText {
		content = content[:maxAnalysisText] + "..."
	}
	prompt := fmt.Sprintf(`Analyze this immigration policy announcement and provide structured analysis.

POLICY TITLE:
%s

POLICY CONTENT:
%s

Provide your analysis in this EXACT JSON format:
{
  "affected_visas": ["F-1", "OPT", "H-1B"],
  "impact_level": "High",
  "summary": "A 2-3 sentence plain English explanation",
  "action_items": ["Specific action 1", "Specific action 2"]
}

RULES:
1. affected_visas: List visa types affected. Options: F-1, OPT, H-1B, L-1, O-1. Use empty array if none.
2. impact_level: Must be exactly one of: Critical, High, Medium, Low
3. summary: Write for non-experts. Explain practical implications in 2-3 sentences.
4. action_items: List 2-5 specific actionable steps. Use empty array if none needed.

Return ONLY the JSON object, nothing else.`, title, content)

	return ai.Request{Parts: []ai.Part{ai.TextPart(prompt)}, JSONResponse: true}
}
