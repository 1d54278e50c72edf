// Package client talks to a running bridge over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/corymhall/editorbridge/bridge"
)

const (
	// URLEnv overrides the default bridge URL.
	URLEnv = "VSCODE_BRIDGE_URL"

	// DefaultTimeout bounds every request to the bridge.
	DefaultTimeout = 3 * time.Second
)

// DefaultURL returns the bridge URL from the environment, falling back to
// the bridge's default loopback address.
func DefaultURL() string {
	if u := os.Getenv(URLEnv); u != "" {
		return u
	}
	return "http://" + bridge.DefaultAddr
}

// StatusError is returned when the bridge answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge returned %d: %s", e.StatusCode, e.Body)
}

// Result is the bridge's answer to a save-all request.
type Result struct {
	StatusCode int
	Body       string
}

type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the bridge at baseURL. An empty baseURL means
// DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// SaveAll asks the editor to save every modified document.
func (c *Client) SaveAll(ctx context.Context) (*Result, error) {
	resp, body, err := c.do(ctx, http.MethodPost, "/saveAll")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// Diagnostics fetches the editor's current diagnostics.
func (c *Client) Diagnostics(ctx context.Context) ([]bridge.DocumentDiagnostics, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/diagnostics")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	var out []bridge.DocumentDiagnostics
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decoding diagnostics: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s response: %w", path, err)
	}
	return resp, string(body), nil
}
