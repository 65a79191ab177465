// Package httpclient implements [backend.Client] over HTTP/JSON.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/aura/pkg/backend"
)

// Compile-time interface checks.
var (
	_ backend.Client   = (*Client)(nil)
	_ backend.Resetter = (*Client)(nil)
)

const (
	defaultTimeout = 60 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for logs.
	maxErrorBody = 4 << 10
)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client entirely. Timeout and
// transport options applied after it modify the given client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds a whole exchange, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTransport sets the round tripper, typically an instrumented one.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client talks to a research backend rooted at a base URL.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// New creates a Client for the backend at baseURL (for example
// "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("httpclient: base URL must not be empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("httpclient: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: "aura",
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// Send implements [backend.Client].
func (c *Client) Send(ctx context.Context, req backend.Request) (*backend.Response, error) {
	var resp backend.Response
	if err := c.post(ctx, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset implements [backend.Resetter].
func (c *Client) Reset(ctx context.Context, sessionID string) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/reset", backend.Request{SessionID: sessionID}, &status); err != nil {
		return fmt.Errorf("httpclient: reset: %w", err)
	}
	return nil
}

// Ping checks that the backend answers HTTP at all. Any status counts as
// reachable; the root page may well be a 404 on API-only deployments.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		return fmt.Errorf("httpclient: ping: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: ping: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(path).String(), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &backend.StatusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	return nil
}
