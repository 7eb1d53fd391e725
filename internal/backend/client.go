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

	"github.com/google/uuid"

	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/services"
)

const (
	defaultHTTPTimeout = 15 * time.Minute
	maxErrorBody       = 64 << 10
	requestIDHeader    = "X-Request-ID"
)

// ErrNotModified reports a 304 from the clip listing; callers keep what they have.
var ErrNotModified = errors.New("clips unchanged")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return services.ErrNotFound
	}
	return services.ErrBackend
}

// HTTPDoer describes the HTTP client used by the backend client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the media-processing backend.
type Client struct {
	baseURL  string
	mediaURL string
	http     HTTPDoer
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithMediaServerURL sets the root of the live-stream endpoints.
func WithMediaServerURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.mediaURL = strings.TrimRight(base, "/")
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	client := &Client{
		baseURL:  base,
		mediaURL: base + "/api",
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewFromConfig builds a client from the backend configuration section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(cfg.Backend.BaseURL,
		WithMediaServerURL(cfg.Backend.MediaServerURL),
		WithHTTPClient(&http.Client{Timeout: cfg.BackendTimeout()}),
		WithLogger(logging.NewComponentLogger(logger, "backend")),
	)
}

// BaseURL returns the pipeline API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the backend answers HTTP at all. Any status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "backend", "ping", c.baseURL, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	started := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "backend", req.Method, req.URL.Path, err)
		}
		return services.Wrap(services.ErrTransient, "backend", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		logging.String("method", req.Method),
		logging.String("path", req.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", c.now().Sub(started)),
		logging.String(logging.FieldCorrelationID, req.Header.Get(requestIDHeader)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := decodeBody(resp, out); err != nil {
		return services.Wrap(services.ErrBackend, "backend", req.Method, "decode "+req.URL.Path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(data))
	if message == "" {
		message = fmt.Sprintf("Request failed: %d", resp.StatusCode)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: message}
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}
