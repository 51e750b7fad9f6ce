package api

import (
	"context"
	"net/http"
)

// SignupRequest is the new-account payload.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	VisaType string `json:"visa_type,omitempty"`
}

// Signup creates an account and returns the stored profile.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.doAnon(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login verifies credentials and returns the profile plus the marker the
// client uses to route first-time users to onboarding.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var out LoginResult
	if err := c.doAnon(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
