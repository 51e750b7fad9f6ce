package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"visatrack/internal/identity"
)

const maxResponseBytes = 4 << 20

// Client calls the backend REST API on behalf of one identity source.
// A nil HTTPClient falls back to http.DefaultClient.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Identity   identity.Source
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// do runs an authenticated call. The identity is resolved before any
// request is built, so an unauthenticated caller never touches the
// network.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	id, err := c.Identity.Current(ctx)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, &id, method, path, body, out)
}

// doAnon runs an unauthenticated call. Only login and signup use it.
func (c *Client) doAnon(ctx context.Context, method, path string, body, out interface{}) error {
	return c.roundTrip(ctx, nil, method, path, body, out)
}

func (c *Client) roundTrip(ctx context.Context, id *identity.Identity, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id != nil {
		req.Header.Set("Authorization", "Bearer "+id.UserID)
		if id.Email != "" {
			req.Header.Set("X-User-Email", id.Email)
		}
	}

	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	var env envelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
		if res.StatusCode >= 400 {
			return &APIError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", jsonErr)
	}
	if res.StatusCode >= 400 || !env.Success {
		e := &APIError{Status: res.StatusCode, Message: env.Message}
		if env.Error != nil {
			e.Code = env.Error.Code
			if env.Error.Message != "" {
				e.Message = env.Error.Message
			}
		}
		return e
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
