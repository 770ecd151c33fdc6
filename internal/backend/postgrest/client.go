// Package postgrest reads profile and grant rows through the hosted REST
// row API (/rest/v1). Requests carry the signed-in user's access token so
// row-level security applies.
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

const (
	profilesTable = "users"
	grantsTable   = "user_permissions"
)

// Client implements backend.Records over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a client for the project at projectURL.
func New(projectURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(projectURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ProfileByID implements backend.Records.
func (c *Client) ProfileByID(ctx context.Context, accessToken, id string) (*rbac.Profile, error) {
	query := url.Values{
		"select": {"*"},
		"id":     {"eq." + id},
		"limit":  {"1"},
	}
	var rows []rbac.Profile
	if err := c.get(ctx, profilesTable, query, accessToken, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}
	return &rows[0], nil
}

// GrantsByUser implements backend.Records.
func (c *Client) GrantsByUser(ctx context.Context, accessToken, userID string) ([]rbac.Grant, error) {
	query := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + userID},
	}
	var rows []rbac.Grant
	if err := c.get(ctx, grantsTable, query, accessToken, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) get(ctx context.Context, table string, query url.Values, bearer string, out any) error {
	target := fmt.Sprintf("%s/%s?%s", c.baseURL, table, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("postgrest: build %s: %w", table, err)
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return backend.NetworkError("postgrest "+table, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.NetworkError("postgrest "+table, err)
	}
	if resp.StatusCode >= 400 {
		var p errorPayload
		_ = json.Unmarshal(payload, &p)
		msg := p.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		kind := backend.KindService
		if resp.StatusCode == http.StatusUnauthorized {
			kind = backend.KindSessionMissing
		}
		return &backend.Error{Kind: kind, Code: p.Code, Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &backend.Error{Kind: backend.KindService, Status: resp.StatusCode, Message: "postgrest: decode " + table, Err: err}
	}
	return nil
}
