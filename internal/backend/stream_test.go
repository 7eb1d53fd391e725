package backend_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodpipe/internal/backend"
)

func TestStartStreamFallbackIsSuccess(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /media/start-stream", http.StatusNotFound, `{"fallback":true,"vod_url":"https://www.twitch.tv/videos/5"}`)

	client := backend.NewClient(srv.URL, backend.WithMediaServerURL(srv.URL+"/media/"))
	resp, err := client.StartStream(context.Background(), "https://www.twitch.tv/someone")
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "https://www.twitch.tv/videos/5", resp.VODURL)
	assert.Equal(t, "https://www.twitch.tv/someone", fb.last(t).Payload["url"])
}

func TestStartStreamErrorPrefersErrorField(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /api/start-stream", http.StatusBadRequest, `{"error":"channel not found","message":"ignored"}`)

	_, err := backend.NewClient(srv.URL).StartStream(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, "channel not found", err.Error())
}

func TestStopStreamAndManualClip(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /api/stop-stream", http.StatusConflict, `{"message":"not streaming"}`)
	fb.handle("POST /api/manual-clip", http.StatusOK, `{"path":"/clips/manual_1.mp4"}`)

	client := backend.NewClient(srv.URL)
	err := client.StopStream(context.Background())
	require.Error(t, err)
	assert.Equal(t, "not streaming", err.Error())

	clip, err := client.ManualClip(context.Background(), 45)
	require.NoError(t, err)
	assert.Equal(t, "/clips/manual_1.mp4", clip.Location())
	assert.EqualValues(t, 45, fb.last(t).Payload["duration"])
}

func TestManualClipFailureFallbackMessage(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /api/manual-clip", http.StatusInternalServerError, `not json`)

	_, err := backend.NewClient(srv.URL).ManualClip(context.Background(), 30)
	require.Error(t, err)
	assert.Equal(t, "Clip failed.", err.Error())
}

func TestExtractLiveFrames(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /api/extract-frames", http.StatusOK, `whatever`)

	require.NoError(t, backend.NewClient(srv.URL).ExtractLiveFrames(context.Background()))
	assert.Equal(t, http.MethodGet, fb.last(t).Method)
}
