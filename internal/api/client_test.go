package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"visatrack/internal/identity"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Identity:   identity.Static{UserID: "user-1", Email: "test@school.edu"},
	}
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestClientSendsIdentityHeaders(t *testing.T) {
	var gotAuth, gotEmail string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEmail = r.Header.Get("X-User-Email")
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"documents":[]}}`)
	}))

	if _, err := client.ListDocuments(context.Background()); err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if gotAuth != "Bearer user-1" {
		t.Errorf("Authorization = %q, want Bearer user-1", gotAuth)
	}
	if gotEmail != "test@school.edu" {
		t.Errorf("X-User-Email = %q", gotEmail)
	}
}

func TestClientNoRequestWithoutIdentity(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusOK, `{"success":true}`)
	}))
	client.Identity = identity.Static{}

	_, err := client.ListDocuments(context.Background())
	if !errors.Is(err, identity.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestClientExtractsEnvelopeError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest,
			`{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Invalid document type"}}`)
	}))

	_, err := client.NegotiateUpload(context.Background(), "file.pdf", "application/pdf", "menu")
	if !errors.Is(err, ErrUploadNegotiationFailed) {
		t.Fatalf("expected ErrUploadNegotiationFailed, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError in the chain, got %v", err)
	}
	if apiErr.Message != "Invalid document type" || apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestClientHandlesNonJSONFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := client.Status(context.Background(), "doc-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", apiErr.Status)
	}
}

func TestClientRejectsFalseEnvelopeOn200(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":false,"error":{"message":"quietly failed"}}`)
	}))

	_, err := client.Status(context.Background(), "doc-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "quietly failed" {
		t.Fatalf("expected the envelope failure surfaced, got %v", err)
	}
}
