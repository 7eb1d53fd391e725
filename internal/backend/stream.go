package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"vodpipe/internal/services"
)

// StartStream begins live capture of a channel. A non-2xx answer is still a
// success when the server fell back to the latest VOD.
func (c *Client) StartStream(ctx context.Context, streamURL string) (StartStreamResponse, error) {
	var resp StartStreamResponse
	status, err := c.liveCall(ctx, http.MethodPost, "/start-stream", map[string]string{"url": streamURL}, &resp)
	if err != nil {
		return resp, err
	}
	if !ok(status) && !resp.Fallback {
		return resp, liveError(status, "Failed to start stream", resp.Error, resp.Message)
	}
	return resp, nil
}

// StopStream stops live capture.
func (c *Client) StopStream(ctx context.Context) error {
	var resp struct {
		Message string `json:"message"`
	}
	status, err := c.liveCall(ctx, http.MethodPost, "/stop-stream", nil, &resp)
	if err != nil {
		return err
	}
	if !ok(status) {
		return liveError(status, "Failed to stop stream", resp.Message)
	}
	return nil
}

// ManualClip cuts the last duration seconds of the live capture.
func (c *Client) ManualClip(ctx context.Context, duration int) (ManualClipResponse, error) {
	var resp ManualClipResponse
	status, err := c.liveCall(ctx, http.MethodPost, "/manual-clip", map[string]int{"duration": duration}, &resp)
	if err != nil {
		return resp, err
	}
	if !ok(status) {
		return resp, liveError(status, "Clip failed.", resp.Message)
	}
	return resp, nil
}

// ExtractLiveFrames triggers frame extraction on the live capture. The
// response body carries nothing the caller uses.
func (c *Client) ExtractLiveFrames(ctx context.Context) error {
	status, err := c.liveCall(ctx, http.MethodGet, "/extract-frames", nil, nil)
	if err != nil {
		return err
	}
	if !ok(status) {
		return liveError(status, fmt.Sprintf("Request failed: %d", status))
	}
	return nil
}

// liveCall performs a media-server request and decodes the JSON body whatever
// the status, since those endpoints explain failures in the body.
func (c *Client) liveCall(ctx context.Context, method, path string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, c.mediaURL+path, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "stream", path, "network error", err)
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := decodeBody(resp, out); err != nil && ok(resp.StatusCode) {
		return resp.StatusCode, services.Wrap(services.ErrBackend, "stream", path, "decode response", err)
	}
	return resp.StatusCode, nil
}

func decodeBody(resp *http.Response, out any) error {
	err := json.NewDecoder(resp.Body).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func liveError(status int, fallback string, candidates ...string) error {
	for _, candidate := range candidates {
		if candidate != "" {
			return &StatusError{StatusCode: status, Message: candidate}
		}
	}
	return &StatusError{StatusCode: status, Message: fallback}
}
