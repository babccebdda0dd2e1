// ABOUTME: HTTP transport for the services API: request building, auth headers and errors.
// ABOUTME: Every call reads the full body, parses JSON leniently and maps non-2xx to APIError.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://guday.taliyap2p.com/api/v1"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// ErrNoSession is returned by admin operations called without an authorization header.
var ErrNoSession = errors.New("admin session token missing, please log in as admin")

// ErrEmptyResponse is returned when a successful response carried no usable object.
var ErrEmptyResponse = errors.New("backend returned an empty response")

// APIError is a non-2xx response from the services API.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err means the caller's token was rejected.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNoSession) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a services API client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// New creates a Client. An empty BaseURL selects DefaultBaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing backend base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend base url must be http or https, got %q", base)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "guday-portal"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		timeout:   timeout,
		userAgent: ua,
		logger:    logger.With("component", "backend"),
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type authKey struct{}

// WithAuthorization attaches a citizen authorization header to public calls made with ctx.
func WithAuthorization(ctx context.Context, header string) context.Context {
	if header == "" {
		return ctx
	}
	return context.WithValue(ctx, authKey{}, header)
}

func authFromContext(ctx context.Context) string {
	h, _ := ctx.Value(authKey{}).(string)
	return h
}

// call describes one API request.
type call struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   string
	// failure prefixes the fallback error message, e.g. "failed to get services".
	failure string
}

// do performs the request and returns the raw JSON payload, or nil when the
// body was empty or not JSON.
func (c *Client) do(ctx context.Context, req call) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	auth := req.auth
	if auth == "" {
		auth = authFromContext(ctx)
	}
	if auth != "" {
		httpReq.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed", "method", req.method, "path", req.path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", req.method, req.path, err)
	}

	var payload []byte
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && gjson.ValidBytes(trimmed) {
		payload = trimmed
	}

	c.logger.Debug("backend request",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		failure := req.failure
		if failure == "" {
			failure = "request failed"
		}
		return nil, &APIError{
			Status:  resp.StatusCode,
			Message: errorMessage(payload, resp.StatusCode, failure),
			Body:    raw,
		}
	}
	return payload, nil
}

// errorMessage picks the most useful human-readable message from an error payload.
func errorMessage(payload []byte, status int, failure string) string {
	root := gjson.ParseBytes(payload)
	if root.IsObject() {
		if detail := root.Get("detail"); detail.Type == gjson.String && detail.String() != "" {
			return detail.String()
		}
		if msg := root.Get("detail.0.msg"); msg.Type == gjson.String && msg.String() != "" {
			return msg.String()
		}
		if e := root.Get("error"); e.Type == gjson.String && e.String() != "" {
			return e.String()
		}
		if msg := root.Get("message"); msg.Type == gjson.String && msg.String() != "" {
			return msg.String()
		}
	}
	return fmt.Sprintf("%s: %d %s", failure, status, http.StatusText(status))
}

// requireAuth guards admin operations.
func requireAuth(auth string) error {
	if strings.TrimSpace(auth) == "" {
		return ErrNoSession
	}
	return nil
}

// escape encodes a single path segment.
func escape(segment string) string {
	return url.PathEscape(segment)
}

// adminObject performs an authorized call and decodes its object payload. A
// successful response without a body yields the zero value.
func adminObject[T any](ctx context.Context, c *Client, req call) (T, error) {
	var zero T
	if err := requireAuth(req.auth); err != nil {
		return zero, err
	}
	payload, err := c.do(ctx, req)
	if err != nil {
		return zero, err
	}
	out, err := decodeObject[T](payload)
	if errors.Is(err, ErrEmptyResponse) {
		return zero, nil
	}
	return out, err
}

// adminList performs an authorized call and decodes its list payload.
func adminList[T any](ctx context.Context, c *Client, req call, plural string) ([]T, error) {
	if err := requireAuth(req.auth); err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeList[T](payload, plural)
}

// adminExec performs an authorized call whose response body is ignored.
func (c *Client) adminExec(ctx context.Context, req call) error {
	if err := requireAuth(req.auth); err != nil {
		return err
	}
	_, err := c.do(ctx, req)
	return err
}
