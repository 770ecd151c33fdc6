// Package gotrue talks to the hosted authentication API (/auth/v1).
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cooarq/cooarq-portal/internal/backend"
)

const clientInfo = "cooarq-portal/1.0"

// Client implements backend.Auth over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// New constructs a client for the project at projectURL.
func New(projectURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(projectURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type userPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

func (u userPayload) identity() backend.Identity {
	return backend.Identity{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		Metadata:         u.UserMetadata,
	}
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`
}

func (c *Client) session(p sessionPayload) *backend.Session {
	sess := &backend.Session{
		Tokens: backend.Tokens{
			AccessToken:  p.AccessToken,
			RefreshToken: p.RefreshToken,
			TokenType:    p.TokenType,
		},
	}
	switch {
	case p.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(p.ExpiresAt, 0)
	case p.ExpiresIn > 0:
		sess.ExpiresAt = c.now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	if p.User != nil {
		sess.User = p.User.identity()
	}
	return sess
}

// SignInWithPassword implements backend.Auth.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var out sessionPayload
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, "", body, &out); err != nil {
		return nil, err
	}
	return c.session(out), nil
}

// SignUp implements backend.Auth.
func (c *Client) SignUp(ctx context.Context, req backend.SignUpRequest, challenge string) (*backend.SignUpResult, error) {
	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
	}
	if len(req.Metadata) > 0 {
		body["data"] = req.Metadata
	}
	if challenge != "" {
		body["code_challenge"] = challenge
		body["code_challenge_method"] = "s256"
	}
	query := url.Values{}
	if req.RedirectTo != "" {
		query.Set("redirect_to", req.RedirectTo)
	}

	// The response is a session when the project auto-confirms accounts and
	// a bare user otherwise.
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", query, "", body, &raw); err != nil {
		return nil, err
	}
	var sess sessionPayload
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, &backend.Error{Kind: backend.KindService, Message: "decode signup response", Err: err}
	}
	if sess.AccessToken != "" && sess.User != nil {
		s := c.session(sess)
		return &backend.SignUpResult{User: s.User, Session: s}, nil
	}
	var user userPayload
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, &backend.Error{Kind: backend.KindService, Message: "decode signup response", Err: err}
	}
	return &backend.SignUpResult{User: user.identity()}, nil
}

// SignOut implements backend.Auth.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", url.Values{"scope": {"local"}}, accessToken, nil, nil)
}

// GetUser implements backend.Auth.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*backend.Identity, error) {
	if accessToken == "" {
		return nil, &backend.Error{Kind: backend.KindSessionMissing, Status: http.StatusUnauthorized, Message: "Auth session missing!"}
	}
	var out userPayload
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil, &out); err != nil {
		return nil, err
	}
	id := out.identity()
	return &id, nil
}

// RefreshSession implements backend.Auth.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error) {
	var out sessionPayload
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, "", body, &out); err != nil {
		return nil, err
	}
	return c.session(out), nil
}

// ExchangeCode implements backend.Auth.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*backend.Session, error) {
	var out sessionPayload
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"pkce"}}, "", body, &out); err != nil {
		return nil, err
	}
	return c.session(out), nil
}

// ResetPasswordForEmail implements backend.Auth.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo, challenge string) error {
	body := map[string]string{"email": email}
	if challenge != "" {
		body["code_challenge"] = challenge
		body["code_challenge_method"] = "s256"
	}
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, http.MethodPost, "/recover", query, "", body, nil)
}

// Resend implements backend.Auth.
func (c *Client) Resend(ctx context.Context, kind backend.ResendType, email, redirectTo string) error {
	body := map[string]string{"type": string(kind), "email": email}
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, http.MethodPost, "/resend", query, "", body, nil)
}

// UpdateUser implements backend.Auth.
func (c *Client) UpdateUser(ctx context.Context, accessToken, password string) (*backend.Identity, error) {
	if accessToken == "" {
		return nil, &backend.Error{Kind: backend.KindSessionMissing, Status: http.StatusUnauthorized, Message: "Auth session missing!"}
	}
	var out userPayload
	if err := c.do(ctx, http.MethodPut, "/user", nil, accessToken, map[string]string{"password": password}, &out); err != nil {
		return nil, err
	}
	id := out.identity()
	return &id, nil
}

// AuthorizeURL implements backend.Auth.
func (c *Client) AuthorizeURL(provider backend.Provider, redirectTo, challenge string) (string, error) {
	u, err := url.Parse(c.baseURL + "/authorize")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("provider", string(provider))
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if challenge != "" {
		q.Set("code_challenge", challenge)
		q.Set("code_challenge_method", "s256")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gotrue: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("gotrue: build %s: %w", path, err)
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("X-Client-Info", clientInfo)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return backend.NetworkError("gotrue "+path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.NetworkError("gotrue "+path, err)
	}
	if resp.StatusCode >= 400 {
		return classify(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &backend.Error{Kind: backend.KindService, Status: resp.StatusCode, Message: "gotrue: decode " + path, Err: err}
	}
	return nil
}
