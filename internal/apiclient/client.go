// ABOUTME: HTTP client for the platform admin REST API
// ABOUTME: Reads the bearer token per request, tags requests with ids, and records metrics

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripdesk/tripdesk-admin/internal/metrics"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// TokenSource yields the bearer token for a request. It is consulted on
// every call, never cached by the client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns t.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client talks to the platform admin API.
type Client struct {
	baseURL    *url.URL
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l.With("component", "apiclient") }
}

// New creates a Client for the API at baseURL. A base URL without a scheme
// is treated as plain http.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default().With("component", "apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do performs one authenticated request and returns the raw JSON body.
// A nil body sends no payload; any other value is JSON encoded. Non-2xx
// responses fail with *HTTPError and transport failures with *NetworkError.
// There is no automatic retry.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, headers http.Header) (json.RawMessage, error) {
	return c.do(ctx, request{
		method:        method,
		path:          path,
		query:         query,
		body:          body,
		headers:       headers,
		authenticated: true,
	})
}

// request describes one call. endpoint is the metrics label and defaults
// to path; set it when path carries ids.
type request struct {
	method        string
	path          string
	endpoint      string
	query         url.Values
	body          any
	headers       http.Header
	authenticated bool
}

func (c *Client) do(ctx context.Context, r request) (json.RawMessage, error) {
	method, path, body := r.method, r.path, r.body
	endpoint := r.endpoint
	if endpoint == "" {
		endpoint = path
	}
	target := c.resolve(path, r.query)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	if r.authenticated {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(method, endpoint, 0, time.Since(start))
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.ObserveUpstream(method, endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s %s: response is not valid JSON", method, path)
	}
	return json.RawMessage(data), nil
}

// resolve joins path onto the base URL keeping any base path prefix.
// path is expected to be escaped already.
func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	joined := strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	unescaped, err := url.PathUnescape(joined)
	if err != nil {
		unescaped = joined
	}
	u.Path = unescaped
	u.RawPath = joined
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}
