package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// PolicyQuery filters a policy listing. Zero values mean no filter and
// the server-side default limit.
type PolicyQuery struct {
	VisaType    string
	ImpactLevel string
	Limit       int
}

// Policies fetches tracked policy updates, newest first.
func (c *Client) Policies(ctx context.Context, q PolicyQuery) (*PolicyList, error) {
	params := url.Values{}
	if q.VisaType != "" {
		params.Set("visa_type", q.VisaType)
	}
	if q.ImpactLevel != "" {
		params.Set("impact_level", q.ImpactLevel)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/api/policies"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out PolicyList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
