// Package supabase is a thin REST client for the managed backend: PostgREST
// for table access and GoTrue for auth. Only the operations this service
// needs are implemented.
package supabase

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
)

// Config configures the client from environment settings.
type Config struct {
	ProjectURL string
	// APIKey is the anon key, sent as both apikey and bearer.
	APIKey string
	// ServiceKey optionally bypasses row-level security for server-side
	// writes; falls back to APIKey when empty.
	ServiceKey string
	Timeout    time.Duration
	// HTTPClient overrides the default client; tests inject a mock transport.
	HTTPClient *http.Client
}

type Client struct {
	cfg     Config
	restURL string
	authURL string
	http    *http.Client

	auth *AuthClient
}

func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := strings.TrimRight(cfg.ProjectURL, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid project URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		cfg:     cfg,
		restURL: base + "/rest/v1",
		authURL: base + "/auth/v1",
		http:    httpClient,
	}
	c.auth = &AuthClient{client: c}
	return c, nil
}

// Auth returns the auth sub-client.
func (c *Client) Auth() *AuthClient { return c.auth }

// Ping hits GoTrue's health endpoint to confirm the project answers.
func (c *Client) Ping(ctx context.Context) error {
	body, status, err := c.request(ctx, http.MethodGet, c.authURL+"/health", nil, nil, false)
	if err != nil {
		return err
	}
	if status >= 400 {
		return parseError(body, status)
	}
	return nil
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		headers: make(map[string]string),
	}
}

// request performs an HTTP request with the given key (anon unless a service
// key is configured and serviceRole is set) and returns body + status.
func (c *Client) request(ctx context.Context, method, rawURL string, body []byte, headers map[string]string, serviceRole bool) ([]byte, int, error) {
	key := c.cfg.APIKey
	if serviceRole && c.cfg.ServiceKey != "" {
		key = c.cfg.ServiceKey
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// Error is a structured PostgREST/GoTrue error.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a missing-table/missing-row response,
// which the fallback chains treat as "try the next source".
func IsNotFound(err error) bool {
	se, ok := err.(*Error)
	if !ok {
		return false
	}
	return se.StatusCode == http.StatusNotFound || se.Code == "42P01"
}

func parseError(body []byte, statusCode int) error {
	var raw struct {
		Code             string `json:"code"`
		Message          string `json:"message"`
		Details          string `json:"details"`
		Hint             string `json:"hint"`
		Err              string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return &Error{Code: "unknown", Message: string(body), StatusCode: statusCode}
	}

	msg := raw.Message
	if msg == "" {
		msg = raw.Err
	}
	if msg == "" {
		msg = raw.ErrorDescription
	}
	if msg == "" {
		msg = raw.Msg
	}

	return &Error{
		Code:       raw.Code,
		Message:    msg,
		Details:    raw.Details,
		Hint:       raw.Hint,
		StatusCode: statusCode,
	}
}
