package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vodpipe/internal/api"
	"vodpipe/internal/config"
)

// ErrUnavailable reports that no daemon API is configured or reachable.
var ErrUnavailable = errors.New("daemon API unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon API returned status %d", e.Code)
	}
	return fmt.Sprintf("daemon API: %s (status %d)", e.Message, e.Code)
}

// Client talks to the daemon HTTP API.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	stream *http.Client
}

// LogQuery selects daemon log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	ItemID    int64
	Component string
}

// New returns a client for the API at base. An empty base yields a nil client.
func New(base, token string, timeout time.Duration) (*Client, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, nil
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:  parsed,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: timeout},
		// Follow requests block server-side until an event arrives.
		stream: &http.Client{},
	}, nil
}

// NewFromConfig builds a client from paths.api_bind and paths.api_token.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return nil, nil
	}
	return New(cfg.APIBaseURL(), cfg.Paths.APIToken, 10*time.Second)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, false, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// List returns queue items, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]api.QueueItem, error) {
	values := url.Values{}
	if len(statuses) > 0 {
		values.Set("status", strings.Join(statuses, ","))
	}
	var out api.QueueListResponse
	if err := c.do(ctx, false, http.MethodGet, "/api/queue", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Add queues a new VOD.
func (c *Client) Add(ctx context.Context, vodURL, mode string) (api.QueueItem, error) {
	var out api.QueueItemResponse
	err := c.do(ctx, false, http.MethodPost, "/api/queue", nil, api.AddVODRequest{VODURL: vodURL, Mode: mode}, &out)
	return out.Item, err
}

// Describe returns an item with its stage runs, or nil when it does not exist.
func (c *Client) Describe(ctx context.Context, id int64) (*api.QueueItemResponse, error) {
	var out api.QueueItemResponse
	err := c.do(ctx, false, http.MethodGet, itemPath(id, ""), nil, nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunStage asks the daemon to run one stage for an item in the background.
func (c *Client) RunStage(ctx context.Context, id int64, stage string, force bool) (api.StageRunAccepted, error) {
	var out api.StageRunAccepted
	body := api.StageRunRequest{Force: &force}
	err := c.do(ctx, false, http.MethodPost, itemPath(id, "/stages/"+url.PathEscape(stage)), nil, body, &out)
	return out, err
}

// Retry returns a failed item to the ready status of its failed stage.
func (c *Client) Retry(ctx context.Context, id int64) (api.RetryItemsResult, error) {
	var out api.RetryItemsResult
	err := c.do(ctx, false, http.MethodPost, itemPath(id, "/retry"), nil, nil, &out)
	return out, err
}

// Remove deletes an item.
func (c *Client) Remove(ctx context.Context, id int64) (api.RemoveItemsResult, error) {
	var out api.RemoveItemsResult
	err := c.do(ctx, false, http.MethodDelete, itemPath(id, ""), nil, nil, &out)
	return out, err
}

// Logs fetches daemon log events. Follow queries wait on the server.
func (c *Client) Logs(ctx context.Context, q LogQuery) (api.LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if q.ItemID > 0 {
		values.Set("item", strconv.FormatInt(q.ItemID, 10))
	}
	if component := strings.TrimSpace(q.Component); component != "" {
		values.Set("component", component)
	}
	var out api.LogStreamResponse
	err := c.do(ctx, q.Follow, http.MethodGet, "/api/logs", values, nil, &out)
	return out, err
}

// Events returns the most recent persisted backend events, oldest first.
func (c *Client) Events(ctx context.Context, limit int) ([]api.BackendEvent, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out api.EventsResponse
	if err := c.do(ctx, false, http.MethodGet, "/api/events", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) do(ctx context.Context, stream bool, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpClient := c.http
	if stream {
		httpClient = c.stream
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(apiErr.Error)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func itemPath(id int64, suffix string) string {
	return "/api/queue/" + strconv.FormatInt(id, 10) + suffix
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}
