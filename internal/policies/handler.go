package policies

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"visatrack/internal/shared/server/middleware"
	"visatrack/internal/shared/server/respond"
	"visatrack/internal/shared/telemetry"
)

// Handler exposes the policy endpoints.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the policy routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/policies", h.list)
	rg.POST("/policies/refresh", h.refresh)
}

type policyResponse struct {
	PolicyID      string     `json:"policy_id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	ImpactLevel   string     `json:"impact_level"`
	AffectedVisas []string   `json:"affected_visas"`
	ActionItems   []string   `json:"action_items"`
	SourceURL     string     `json:"source_url,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type filtersApplied struct {
	VisaType    *string `json:"visa_type"`
	ImpactLevel *string `json:"impact_level"`
	Limit       int     `json:"limit"`
}

func (h *Handler) list(c *gin.Context) {
	visaType := strings.TrimSpace(c.Query("visa_type"))
	impactLevel := strings.TrimSpace(c.Query("impact_level"))

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidLimit,
			"Limit must be between 1 and 50", nil)
		return
	}
	if visaType != "" && !containsString(AllowedVisaTypes, visaType) {
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidVisa,
			"Visa type must be one of: "+strings.Join(AllowedVisaTypes, ", "), nil)
		return
	}
	if impactLevel != "" && !containsString(AllowedImpactLevels, impactLevel) {
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidImpact,
			"Impact level must be one of: "+strings.Join(AllowedImpactLevels, ", "), nil)
		return
	}

	found, err := h.Svc.List(requestContext(c), visaType, impactLevel, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase,
			"Error retrieving policies", nil)
		return
	}

	out := make([]policyResponse, 0, len(found))
	for _, p := range found {
		out = append(out, toResponse(p))
	}
	respond.OK(c, gin.H{
		"count":    len(out),
		"policies": out,
		"filters_applied": filtersApplied{
			VisaType:    optional(visaType),
			ImpactLevel: optional(impactLevel),
			Limit:       limit,
		},
	})
}

func (h *Handler) refresh(c *gin.Context) {
	stats, err := h.Svc.Refresh(requestContext(c))
	if err != nil {
		if errors.Is(err, ErrUnreachable) {
			respond.Error(c, http.StatusServiceUnavailable, ErrorCodeUnreachable,
				"Could not reach policy news source", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal,
			"Policy refresh failed", nil)
		return
	}

	message := fmt.Sprintf("Processed %d policies, saved %d new ones", stats.Analyzed, stats.Saved)
	if stats.Scraped == 0 {
		message = "No new policies found"
	}
	respond.JSONMessage(c, http.StatusOK, gin.H{"results": stats}, message)
}

func toResponse(p PolicyUpdate) policyResponse {
	out := policyResponse{
		PolicyID:      p.ID,
		Title:         p.Title,
		Summary:       p.Summary,
		ImpactLevel:   p.ImpactLevel,
		AffectedVisas: stringList(p.AffectedVisas),
		ActionItems:   stringList(p.ActionItems),
		SourceURL:     p.SourceURL,
		CreatedAt:     p.CreatedAt,
	}
	if !p.PublishedAt.IsZero() {
		published := p.PublishedAt
		out.PublishedDate = &published
	}
	return out
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// requestContext carries the middleware request ID into the service layer so
// background logs stay correlated.
func requestContext(c *gin.Context) context.Context {
	return telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}
