package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"vodpipe/internal/backend"
	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/services"
	"vodpipe/internal/stage"
	"vodpipe/internal/vodid"
)

const (
	healthCacheTTL = 30 * time.Second
	// fanOutLogStep is the percentage step between clip progress logs.
	fanOutLogStep = 25
)

// Handlers adapts the runner to the workflow manager, one handler per stage key.
func Handlers(r *Runner) map[string]stage.Handler {
	handlers := make(map[string]stage.Handler, len(definitions))
	for _, key := range queue.StageKeys() {
		base := stageHandler{runner: r, key: key}
		switch key {
		case queue.StageWriteResults:
			handlers[key] = &writeResultsHandler{stageHandler: base}
		case queue.StagePushSegments:
			handlers[key] = &pushHandler{stageHandler: base}
		case queue.StagePolish:
			handlers[key] = &polishHandler{stageHandler: base}
		case queue.StageUpload:
			handlers[key] = &uploadHandler{stageHandler: base}
		default:
			handlers[key] = &base
		}
	}
	return handlers
}

type stageHandler struct {
	runner *Runner
	key    string
}

func (h *stageHandler) Prepare(_ context.Context, item *queue.Item) error {
	item.InitProgress(h.key, "Starting "+Label(h.key))
	return nil
}

func (h *stageHandler) Execute(ctx context.Context, item *queue.Item) error {
	if _, err := h.runner.Run(ctx, item, h.key); err != nil {
		return err
	}
	item.SetProgressComplete(h.key, Label(h.key)+" completed")
	return nil
}

func (h *stageHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Probe(h.key, "backend", h.runner.backendHealth(ctx))
}

// writeResultsHandler skips the optional results write unless enabled.
type writeResultsHandler struct {
	stageHandler
}

func (h *writeResultsHandler) Execute(ctx context.Context, item *queue.Item) error {
	if !h.runner.cfg.Workflow.WriteResults {
		logging.WithContext(services.WithItemID(ctx, item.ID), h.runner.logger).Debug("write results disabled; skipping",
			logging.String(logging.FieldStage, h.key),
			logging.String(logging.FieldEventType, "stage_skipped"),
		)
		item.SetProgressComplete(h.key, "Write results skipped")
		return nil
	}
	return h.stageHandler.Execute(ctx, item)
}

// pushHandler loads the approved clips once segments are pushed.
type pushHandler struct {
	stageHandler
}

func (h *pushHandler) Execute(ctx context.Context, item *queue.Item) error {
	if err := h.stageHandler.Execute(ctx, item); err != nil {
		return err
	}
	if _, err := h.runner.LoadClips(ctx, item); err != nil {
		logging.WarnWithContext(logging.WithContext(services.WithItemID(ctx, item.ID), h.runner.logger),
			"clip listing after push failed", "clip_refresh",
			logging.String(logging.FieldErrorHint, "polish will retry the listing"),
			logging.Error(err),
		)
	}
	return nil
}

// polishHandler polishes every approved clip of the VOD.
type polishHandler struct {
	stageHandler
}

func (h *polishHandler) Execute(ctx context.Context, item *queue.Item) error {
	r := h.runner
	clips, err := r.deliveryClips(ctx, item)
	if err != nil {
		return err
	}
	force := r.cfg.Workflow.ForcePolish
	_, err = r.record(ctx, item, h.key, nil, func(ctx context.Context) (string, error) {
		if len(clips) == 0 {
			return "No approved clips to polish.", nil
		}
		results := r.fanOut(ctx, clips, func(ctx context.Context, clip backend.Clip) (string, error) {
			resp, err := r.client.PolishWithSilence(ctx, clip.SegmentID, force)
			if err != nil {
				return "", err
			}
			if resp.Output != "" {
				return resp.Output, nil
			}
			return vodid.PolishedFilename(ResolvedVODID(item), vodid.IndexFromSegmentID(clip.SegmentID)), nil
		})

		outputs := make(map[string]string, len(results))
		for _, res := range results {
			if res.err != nil {
				continue
			}
			if len(outputs) == 0 {
				item.SelectedSegmentID = res.segmentID
				item.SegmentIndex = vodid.IndexFromSegmentID(res.segmentID)
				item.PolishedPath = res.output
			}
			outputs[res.segmentID] = res.output
		}
		if err := markPolished(item, outputs); err != nil {
			return "", err
		}
		if len(outputs) > 0 {
			if _, err := r.refreshClips(ctx, item); err != nil && !errors.Is(err, backend.ErrNotModified) {
				logging.WarnWithContext(logging.WithContext(ctx, r.logger), "clip refresh after polish failed", "clip_refresh",
					logging.Error(err),
				)
			}
		}
		return summarize("Polished", "polish clips", results)
	})
	if err != nil {
		return err
	}
	item.SetProgressComplete(h.key, "Polish completed")
	return nil
}

// uploadHandler uploads every polished clip of the VOD.
type uploadHandler struct {
	stageHandler
}

func (h *uploadHandler) Execute(ctx context.Context, item *queue.Item) error {
	r := h.runner
	clips, err := r.deliveryClips(ctx, item)
	if err != nil {
		return err
	}
	polished := make([]backend.Clip, 0, len(clips))
	for _, clip := range clips {
		if clip.Polished() {
			polished = append(polished, clip)
		}
	}
	vodID := ResolvedVODID(item)
	_, err = r.record(ctx, item, h.key,
		func(map[string]queue.StageRun) string {
			if vodID == "" {
				return msgMissingVODID
			}
			return ""
		},
		func(ctx context.Context) (string, error) {
			if len(polished) == 0 {
				return "No polished clips to upload.", nil
			}
			results := r.fanOut(ctx, polished, func(ctx context.Context, clip backend.Clip) (string, error) {
				req := uploadRequest(r.cfg.Backend.UserID, vodID, vodid.IndexFromSegmentID(clip.SegmentID), clip.SilencePreviewURL)
				resp, err := r.client.UploadMedia(ctx, req)
				if err != nil {
					return "", err
				}
				if resp.URL != "" {
					return resp.URL, nil
				}
				return formatUpload(resp), nil
			})
			return summarize("Uploaded", "upload clips", results)
		})
	if err != nil {
		return err
	}
	item.SetProgressComplete(h.key, "Upload completed")
	return nil
}

// deliveryClips returns the cached clips, listing them when the cache is
// empty, capped at workflow.max_clips_per_vod.
func (r *Runner) deliveryClips(ctx context.Context, item *queue.Item) ([]backend.Clip, error) {
	clips, err := item.Clips()
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 && ResolvedVODID(item) != "" {
		result, err := r.LoadClips(ctx, item)
		if err != nil {
			return nil, err
		}
		clips = result.Clips
	}
	if limit := r.cfg.Workflow.MaxClipsPerVOD; limit > 0 && len(clips) > limit {
		clips = clips[:limit]
	}
	return clips, nil
}

type clipResult struct {
	segmentID string
	output    string
	err       error
}

// fanOut runs fn for every clip with at most workflow.polish_concurrency calls
// in flight. Clips fail independently; results keep the input order.
func (r *Runner) fanOut(ctx context.Context, clips []backend.Clip, fn func(context.Context, backend.Clip) (string, error)) []clipResult {
	limit := r.cfg.Workflow.PolishConcurrency
	if limit <= 0 {
		limit = 1
	}
	results := make([]clipResult, len(clips))
	stageName, _ := services.StageFromContext(ctx)
	sampler := logging.NewProgressSampler(fanOutLogStep)
	var (
		g    errgroup.Group
		done atomic.Int64
	)
	g.SetLimit(limit)
	for i, clip := range clips {
		g.Go(func() error {
			out, err := fn(ctx, clip)
			results[i] = clipResult{segmentID: clip.SegmentID, output: out, err: err}
			n := done.Add(1)
			if percent := float64(n) * 100 / float64(len(clips)); sampler.ShouldLog(percent, stageName) {
				logging.WithContext(ctx, r.logger).Info("clip fan-out progress",
					logging.Int64("done", n),
					logging.Int("total", len(clips)),
					logging.String(logging.FieldEventType, "clip_progress"),
				)
			}
			if err != nil {
				logging.WarnWithContext(logging.WithContext(ctx, r.logger), "clip failed", "clip_failure",
					logging.String(logging.FieldSegmentID, clip.SegmentID),
					logging.String(logging.FieldErrorHint, services.Hint(err)),
					logging.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// summarize renders per-clip results. It fails only when every clip failed.
func summarize(verb, operation string, results []clipResult) (string, error) {
	var (
		b    strings.Builder
		errs []error
	)
	for _, res := range results {
		if res.err != nil {
			fmt.Fprintf(&b, "%s: %s\n", res.segmentID, firstLine(stage.OutputOf(res.err)))
			errs = append(errs, fmt.Errorf("%s: %w", res.segmentID, res.err))
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", res.segmentID, firstLine(res.output))
	}
	fmt.Fprintf(&b, "%s %d/%d clips", verb, len(results)-len(errs), len(results))
	if len(errs) == len(results) {
		return b.String(), services.Wrap(services.ErrBackend, "", operation, "every clip failed", errors.Join(errs...))
	}
	return b.String(), nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

type healthCache struct {
	mu      sync.Mutex
	checked time.Time
	err     error
}

// backendHealth pings the backend at most once per healthCacheTTL.
func (r *Runner) backendHealth(ctx context.Context) error {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()
	if !r.health.checked.IsZero() && r.now().Sub(r.health.checked) < healthCacheTTL {
		return r.health.err
	}
	r.health.err = r.client.Ping(ctx)
	r.health.checked = r.now()
	return r.health.err
}
