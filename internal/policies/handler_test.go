package policies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"visatrack/internal/shared/server/middleware"
)

func setupPoliciesRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	group := router.Group("/api")
	NewHandler(svc).RegisterRoutes(group)
	return router
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

type listPayload struct {
	Count    int              `json:"count"`
	Policies []policyResponse `json:"policies"`
	Filters  struct {
		VisaType    *string `json:"visa_type"`
		ImpactLevel *string `json:"impact_level"`
		Limit       int     `json:"limit"`
	} `json:"filters_applied"`
}

func seedPolicies(t *testing.T, repo Repo) {
	t.Helper()
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	seed := []PolicyUpdate{
		{ID: "p1", Title: "New OPT guidance", SourceURL: "u1", ImpactLevel: "High",
			AffectedVisas: []string{"F-1", "OPT"}, PublishedAt: now, CreatedAt: now},
		{ID: "p2", Title: "H-1B fee update", SourceURL: "u2", ImpactLevel: "Low",
			AffectedVisas: []string{"H-1B"}, PublishedAt: now.Add(-time.Hour), CreatedAt: now},
	}
	for _, p := range seed {
		if err := repo.Save(context.Background(), p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}
}

func TestListPoliciesEndpoint(t *testing.T) {
	repo := NewMemoryRepo()
	seedPolicies(t, repo)
	router := setupPoliciesRouter(t, newService(repo, &fakeSource{}, &scriptedAI{}))

	req := httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	env := decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatal("expected success envelope")
	}

	var payload listPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Count != 2 || len(payload.Policies) != 2 {
		t.Fatalf("count = %d, policies = %d", payload.Count, len(payload.Policies))
	}
	if payload.Policies[0].PolicyID != "p1" {
		t.Fatalf("first policy = %q, want newest", payload.Policies[0].PolicyID)
	}
	if payload.Filters.VisaType != nil || payload.Filters.ImpactLevel != nil {
		t.Fatalf("filters should be null when unset: %+v", payload.Filters)
	}
	if payload.Filters.Limit != 10 {
		t.Fatalf("default limit = %d", payload.Filters.Limit)
	}
}

func TestListPoliciesAppliesFilters(t *testing.T) {
	repo := NewMemoryRepo()
	seedPolicies(t, repo)
	router := setupPoliciesRouter(t, newService(repo, &fakeSource{}, &scriptedAI{}))

	req := httptest.NewRequest(http.MethodGet, "/api/policies?visa_type=OPT&impact_level=High&limit=5", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var payload listPayload
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Count != 1 || payload.Policies[0].PolicyID != "p1" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Filters.VisaType == nil || *payload.Filters.VisaType != "OPT" {
		t.Fatalf("visa filter echo = %v", payload.Filters.VisaType)
	}
	if payload.Filters.ImpactLevel == nil || *payload.Filters.ImpactLevel != "High" {
		t.Fatalf("impact filter echo = %v", payload.Filters.ImpactLevel)
	}
	if payload.Filters.Limit != 5 {
		t.Fatalf("limit echo = %d", payload.Filters.Limit)
	}
}

func TestListPoliciesRejectsBadFilters(t *testing.T) {
	cases := []struct {
		name  string
		query string
		code  string
	}{
		{"limit not a number", "?limit=abc", ErrorCodeInvalidLimit},
		{"limit too small", "?limit=0", ErrorCodeInvalidLimit},
		{"limit too large", "?limit=51", ErrorCodeInvalidLimit},
		{"unknown visa", "?visa_type=B-2", ErrorCodeInvalidVisa},
		{"unknown impact", "?impact_level=severe", ErrorCodeInvalidImpact},
		{"critical not filterable", "?impact_level=Critical", ErrorCodeInvalidImpact},
	}
	router := setupPoliciesRouter(t, newService(NewMemoryRepo(), &fakeSource{}, &scriptedAI{}))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/policies"+tc.query, nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.Code)
			}
			env := decodeEnvelope(t, resp)
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("error = %+v, want code %s", env.Error, tc.code)
			}
		})
	}
}

type errRepo struct{ err error }

func (r errRepo) Save(ctx context.Context, p PolicyUpdate) error { return r.err }

func (r errRepo) List(ctx context.Context, limit int) ([]PolicyUpdate, error) {
	return nil, r.err
}

func TestListPoliciesDatabaseError(t *testing.T) {
	svc := newService(errRepo{err: context.DeadlineExceeded}, &fakeSource{}, &scriptedAI{})
	router := setupPoliciesRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != ErrorCodeDatabase {
		t.Fatalf("error = %+v", env.Error)
	}
	if env.Error.Message != "Error retrieving policies" {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	source := &fakeSource{
		articles: []Article{{Title: "New OPT guidance", URL: "https://example.gov/opt"}},
		texts:    map[string]string{"https://example.gov/opt": "body"},
	}
	svc := newService(NewMemoryRepo(), source, &scriptedAI{answers: []string{goodAnalysis}})
	router := setupPoliciesRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/policies/refresh", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	env := decodeEnvelope(t, resp)
	if env.Message != "Processed 1 policies, saved 1 new ones" {
		t.Fatalf("message = %q", env.Message)
	}
	var payload struct {
		Results RefreshStats `json:"results"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Results.Saved != 1 {
		t.Fatalf("results = %+v", payload.Results)
	}
}

func TestRefreshEndpointNoArticles(t *testing.T) {
	svc := newService(NewMemoryRepo(), &fakeSource{}, &scriptedAI{})
	router := setupPoliciesRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/policies/refresh", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if env := decodeEnvelope(t, resp); env.Message != "No new policies found" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestRefreshEndpointSourceDown(t *testing.T) {
	source := &fakeSource{articlesErr: ErrUnreachable}
	svc := newService(NewMemoryRepo(), source, &scriptedAI{})
	router := setupPoliciesRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/policies/refresh", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != ErrorCodeUnreachable {
		t.Fatalf("error = %+v", env.Error)
	}
	if env.Error.Message != "Could not reach policy news source" {
		t.Fatalf("message = %q", env.Error.Message)
	}
}
