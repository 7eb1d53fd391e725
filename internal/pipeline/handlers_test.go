package pipeline_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodpipe/internal/backend"
	"vodpipe/internal/config"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
	"vodpipe/internal/services"
)

func TestHandlersCoverEveryStage(t *testing.T) {
	h := newHarness(t)
	handlers := pipeline.Handlers(h.runner)
	for _, key := range queue.StageKeys() {
		assert.Contains(t, handlers, key)
	}
}

func TestHandlerExecuteUpdatesProgress(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("POST /api/transcribe-vod", http.StatusOK, `{"success":true}`)
	item := h.item(t, "", "99")
	handler := pipeline.Handlers(h.runner)[queue.StageTranscribe]
	ctx := context.Background()

	require.NoError(t, handler.Prepare(ctx, item))
	assert.Equal(t, queue.StageTranscribe, item.ProgressStage)
	require.NoError(t, handler.Execute(ctx, item))
	assert.Equal(t, float64(100), item.ProgressPercent)
	assert.Equal(t, queue.StageSuccess, h.stageRun(t, item.ID, queue.StageTranscribe).Status)
}

func TestWriteResultsHandlerHonoursToggle(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "", "99")
	handler := pipeline.Handlers(h.runner)[queue.StageWriteResults]

	require.NoError(t, handler.Execute(context.Background(), item))
	assert.Empty(t, h.backend.Requests())
	assert.Equal(t, queue.StageIdle, h.stageRun(t, item.ID, queue.StageWriteResults).Status)

	enabled := newHarness(t, func(cfg *config.Config) { cfg.Workflow.WriteResults = true })
	enabled.backend.Reply("POST /api/write-vod-results", http.StatusOK, `{"success":true,"rowId":"r-1"}`)
	other := enabled.item(t, "", "99")
	require.NoError(t, pipeline.Handlers(enabled.runner)[queue.StageWriteResults].Execute(context.Background(), other))
	assert.Equal(t, "Success: true\nDB Row ID: r-1", enabled.stageRun(t, other.ID, queue.StageWriteResults).Output)
}

func TestPushHandlerLoadsClips(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("POST /api/clips/generate", http.StatusOK, `{"selected":2}`)
	h.backend.Reply("GET /api/vods/99/clips", http.StatusOK, clipListing)
	item := h.item(t, "", "99")

	require.NoError(t, pipeline.Handlers(h.runner)[queue.StagePushSegments].Execute(context.Background(), item))
	clips, err := h.reload(t, item.ID).Clips()
	require.NoError(t, err)
	assert.Len(t, clips, 2)
}

func TestPushHandlerToleratesListingFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("POST /api/clips/generate", http.StatusOK, `{"selected":0}`)
	h.backend.Reply("GET /api/vods/99/clips", http.StatusInternalServerError, "")
	item := h.item(t, "", "99")

	require.NoError(t, pipeline.Handlers(h.runner)[queue.StagePushSegments].Execute(context.Background(), item))
}

func TestPolishHandlerFansOutAndToleratesPartialFailure(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Workflow.PolishConcurrency = 2
		cfg.Workflow.MaxClipsPerVOD = 3
	})
	var inflight, peak atomic.Int32
	polish := func(output string, status int) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			n := inflight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inflight.Add(-1)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(output))
		}
	}
	h.backend.Handle("POST /api/segments/99_segment_0001/polish-with-silence", polish(`{"output":"/p/1.mp4"}`, http.StatusOK))
	h.backend.Handle("POST /api/segments/99_segment_0002/polish-with-silence", polish("render failed", http.StatusInternalServerError))
	h.backend.Handle("POST /api/segments/99_segment_0003/polish-with-silence", polish(`{}`, http.StatusOK))
	h.backend.Reply("GET /api/vods/99/clips", http.StatusNotModified, "")

	item := h.item(t, "", "99")
	h.withClips(t, item,
		backend.Clip{SegmentID: "99_segment_0001"},
		backend.Clip{SegmentID: "99_segment_0002"},
		backend.Clip{SegmentID: "99_segment_0003"},
		backend.Clip{SegmentID: "99_segment_0004"},
	)

	require.NoError(t, pipeline.Handlers(h.runner)[queue.StagePolish].Execute(context.Background(), item))

	assert.Equal(t, 0, h.backend.Hits("POST /api/segments/99_segment_0004/polish-with-silence"), "max_clips_per_vod caps the fan-out")
	assert.LessOrEqual(t, peak.Load(), int32(2))

	run := h.stageRun(t, item.ID, queue.StagePolish)
	assert.Equal(t, queue.StageSuccess, run.Status)
	assert.Contains(t, run.Output, "99_segment_0001: /p/1.mp4")
	assert.Contains(t, run.Output, "99_segment_0002: render failed")
	assert.Contains(t, run.Output, "99_segment_0003: polished_segment_0003_99.mp4")
	assert.Contains(t, run.Output, "Polished 2/3 clips")

	stored := h.reload(t, item.ID)
	assert.Equal(t, "/p/1.mp4", stored.PolishedPath)
	assert.Equal(t, "99_segment_0001", stored.SelectedSegmentID)
	clips, err := stored.Clips()
	require.NoError(t, err)
	assert.True(t, clips[0].Polished())
	assert.False(t, clips[1].Polished())
	assert.True(t, clips[2].Polished())
}

func TestPolishHandlerFailsWhenEveryClipFails(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("POST /api/segments/99_segment_0001/polish-with-silence", http.StatusInternalServerError, "boom")
	item := h.item(t, "", "99")
	h.withClips(t, item, backend.Clip{SegmentID: "99_segment_0001"})

	err := pipeline.Handlers(h.runner)[queue.StagePolish].Execute(context.Background(), item)
	require.ErrorIs(t, err, services.ErrBackend)
	run := h.stageRun(t, item.ID, queue.StagePolish)
	assert.Equal(t, queue.StageError, run.Status)
	assert.Equal(t, "99_segment_0001: boom\nPolished 0/1 clips", run.Output)
}

func TestPolishHandlerWithoutClips(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("GET /api/vods/99/clips", http.StatusOK, `[]`)
	item := h.item(t, "", "99")

	require.NoError(t, pipeline.Handlers(h.runner)[queue.StagePolish].Execute(context.Background(), item))
	assert.Equal(t, "No approved clips to polish.", h.stageRun(t, item.ID, queue.StagePolish).Output)
}

func TestUploadHandlerUploadsPolishedClipsOnly(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("POST /api/media/upload", http.StatusOK, `{"cloudinary_url":"https://cdn/u.mp4"}`)
	item := h.item(t, "", "99")
	h.withClips(t, item,
		backend.Clip{SegmentID: "99_segment_0001", SilencePreviewURL: "file:///p/1.mp4"},
		backend.Clip{SegmentID: "99_segment_0002"},
	)

	require.NoError(t, pipeline.Handlers(h.runner)[queue.StageUpload].Execute(context.Background(), item))
	assert.Equal(t, 1, h.backend.Hits("POST /api/media/upload"))
	req, _ := h.backend.Last("POST /api/media/upload")
	assert.Equal(t, "segment_0001_99", req.Body["clip_id"])
	assert.Equal(t, "/p/1.mp4", req.Body["file_path"])
	assert.Equal(t, "99_segment_0001: https://cdn/u.mp4\nUploaded 1/1 clips", h.stageRun(t, item.ID, queue.StageUpload).Output)
}

func TestHealthCheckPingsBackend(t *testing.T) {
	h := newHarness(t)
	h.backend.Reply("GET /", http.StatusOK, "ok")
	handler := pipeline.Handlers(h.runner)[queue.StageIngest]

	health := handler.HealthCheck(context.Background())
	assert.True(t, health.Ready, health.Detail)
	assert.Equal(t, queue.StageIngest, health.Name)

	health = pipeline.Handlers(h.runner)[queue.StageUpload].HealthCheck(context.Background())
	assert.True(t, health.Ready)
	assert.Equal(t, 1, h.backend.Hits("GET /"), "health results are cached")
}
