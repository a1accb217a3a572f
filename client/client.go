// ABOUTME: HTTP plumbing shared by every call to the upstream analysis server.
// ABOUTME: Builds JSON requests against a cleaned base URL, stamps the run ID header, and maps non-2xx replies to StatusError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where the analysis server listens when nothing else is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// RunIDHeader carries the client-side run identifier on every request made
// on behalf of a run.
const RunIDHeader = "X-Run-ID"

// CleanBaseURL trims whitespace and every trailing slash so paths can be
// appended without doubling separators. An empty input yields DefaultBaseURL.
func CleanBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return DefaultBaseURL
	}
	return u
}

// Client talks to the upstream server. It is safe for concurrent use.
type Client struct {
	BaseURL        string
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	Retry          RetryPolicy
	Logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.DefaultHeaders[key] = value
	}
}

// WithRetryPolicy sets the policy used by idempotent reads.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.Retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.Logger = l
	}
}

// New creates a Client for baseURL. The HTTP client has no overall timeout:
// the analysis stream stays open for as long as the pipeline runs.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:        CleanBaseURL(baseURL),
		DefaultHeaders: make(map[string]string),
		HTTPClient:     &http.Client{},
		Retry:          DefaultRetryPolicy(),
		Logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Logger = c.Logger.With("component", "client")
	return c
}

type runIDKey struct{}

// WithRunID returns a context whose requests carry id in the run ID header.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run ID stored on ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Do builds and executes a request against the server. A non-nil body is
// JSON-encoded. The caller owns the returned response body; the status code
// is not checked.
func (c *Client) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := RunID(ctx); id != "" {
		req.Header.Set(RunIDHeader, id)
	}
	for k, v := range c.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.Logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// Open performs the request and returns the response only when its status
// is 2xx. Any other status is drained into a StatusError and the body closed.
func (c *Client) Open(ctx context.Context, method, path string, body any) (*http.Response, error) {
	resp, err := c.Do(ctx, method, path, body, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(method, path, resp)
	}
	return resp, nil
}

// JSON performs the request and decodes a 2xx JSON reply into out. A nil
// out discards the body.
func (c *Client) JSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.Open(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// GetJSON is an idempotent JSON read, retried under the client's policy.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return Retry(ctx, c.withRetryLog(path), func() error {
		return c.JSON(ctx, http.MethodGet, path, nil, out)
	})
}

// GetBytes is an idempotent binary read, retried under the client's policy.
// It also returns the reply's Content-Type.
func (c *Client) GetBytes(ctx context.Context, path string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := Retry(ctx, c.withRetryLog(path), func() error {
		resp, err := c.Open(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	return data, contentType, err
}

func (c *Client) withRetryLog(path string) RetryPolicy {
	p := c.Retry
	if p.OnRetry == nil {
		p.OnRetry = func(err error, attempt int, delay time.Duration) {
			c.Logger.Warn("retrying request", "path", path, "attempt", attempt+1, "delay", delay, "error", err)
		}
	}
	return p
}
