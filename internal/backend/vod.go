package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"vodpipe/internal/services"
)

// IngestVOD runs the VOD clipper on a URL.
func (c *Client) IngestVOD(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	var resp IngestResponse
	err := c.postJSON(ctx, c.baseURL+"/api/vod-clipper", req, &resp)
	return resp, err
}

// TranscribeVOD transcribes an ingested VOD.
func (c *Client) TranscribeVOD(ctx context.Context, vodID string) (TranscribeResponse, error) {
	var resp TranscribeResponse
	err := c.postJSON(ctx, c.baseURL+"/api/transcribe-vod", map[string]string{"vod_id": vodID}, &resp)
	return resp, err
}

// ExtractFrames samples frames from a VOD.
func (c *Client) ExtractFrames(ctx context.Context, req ExtractFramesRequest) (ExtractFramesResponse, error) {
	var resp ExtractFramesResponse
	err := c.postJSON(ctx, c.baseURL+"/api/extract-frames-from-vod", req, &resp)
	return resp, err
}

// ScoreVOD scores extracted frames and ingests segment rows.
func (c *Client) ScoreVOD(ctx context.Context, req ScoreRequest) (ScoreResponse, error) {
	var resp ScoreResponse
	err := c.postJSON(ctx, c.baseURL+"/api/internal/score-vod", req, &resp)
	return resp, err
}

// WriteResults persists VOD results.
func (c *Client) WriteResults(ctx context.Context, vodID string) (WriteResultsResponse, error) {
	var resp WriteResultsResponse
	err := c.postJSON(ctx, c.baseURL+"/api/write-vod-results", map[string]string{"vod_id": vodID}, &resp)
	return resp, err
}

// FilterSegments runs the adaptive second filter over every segment of a VOD.
func (c *Client) FilterSegments(ctx context.Context, vodID string) (FilterResponse, error) {
	var resp FilterResponse
	err := c.postJSON(ctx, c.baseURL+"/api/internal/segments/score", map[string]string{"vod_id": vodID}, &resp)
	return resp, err
}

// PushGoodSegments turns approved segments into clips.
func (c *Client) PushGoodSegments(ctx context.Context, req PushRequest) (PushResponse, error) {
	var resp PushResponse
	err := c.postJSON(ctx, c.baseURL+"/api/clips/generate", req, &resp)
	return resp, err
}

// ListClips lists approved clips of a VOD. A 304 yields ErrNotModified.
func (c *Client) ListClips(ctx context.Context, vodID string) ([]Clip, error) {
	endpoint := c.endpoint("api", "vods", vodID, "clips") + "?ts=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "backend", "list clips", vodID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, ErrNotModified
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Failed to load clips: %d", resp.StatusCode),
		}
	}

	var clips []Clip
	if err := decodeBody(resp, &clips); err != nil {
		return nil, services.Wrap(services.ErrBackend, "backend", "list clips", "decode response", err)
	}
	if clips == nil {
		clips = []Clip{}
	}
	return clips, nil
}

// PolishWithSilence removes silences and polishes one segment.
func (c *Client) PolishWithSilence(ctx context.Context, segmentID string, force bool) (PolishResponse, error) {
	var resp PolishResponse
	err := c.postJSON(ctx, c.endpoint("api", "segments", segmentID, "polish-with-silence"), PolishRequest{Force: force}, &resp)
	return resp, err
}

// UploadMedia uploads a polished clip to media hosting.
func (c *Client) UploadMedia(ctx context.Context, req UploadRequest) (UploadResponse, error) {
	var resp UploadResponse
	err := c.postJSON(ctx, c.baseURL+"/api/media/upload", req, &resp)
	return resp, err
}
