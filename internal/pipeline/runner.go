package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vodpipe/internal/backend"
	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/services"
	"vodpipe/internal/stage"
)

// ErrStageRunning is returned when a stage is started while a run of the same
// stage for the same item is still in flight.
var ErrStageRunning = errors.New("stage already running")

// ErrWorkflowOwned is returned when a manual run targets an automatic item
// the workflow is still driving.
var ErrWorkflowOwned = errors.New("item is driven by the workflow")

// CheckManualRun allows operator-started runs on manual items and on
// automatic items that have failed or completed.
func CheckManualRun(item *queue.Item) error {
	if item == nil || item.Mode != queue.ModeAuto {
		return nil
	}
	switch item.Status {
	case queue.StatusFailed, queue.StatusCompleted:
		return nil
	}
	return services.Wrap(services.ErrValidation, "", "manual run",
		fmt.Sprintf("item %d is automatic and %s; wait for it to finish or fail", item.ID, item.Status), ErrWorkflowOwned)
}

// Backend is the subset of the media backend client the pipeline drives.
type Backend interface {
	Ping(ctx context.Context) error
	IngestVOD(ctx context.Context, req backend.IngestRequest) (backend.IngestResponse, error)
	TranscribeVOD(ctx context.Context, vodID string) (backend.TranscribeResponse, error)
	ExtractFrames(ctx context.Context, req backend.ExtractFramesRequest) (backend.ExtractFramesResponse, error)
	ScoreVOD(ctx context.Context, req backend.ScoreRequest) (backend.ScoreResponse, error)
	WriteResults(ctx context.Context, vodID string) (backend.WriteResultsResponse, error)
	FilterSegments(ctx context.Context, vodID string) (backend.FilterResponse, error)
	PushGoodSegments(ctx context.Context, req backend.PushRequest) (backend.PushResponse, error)
	ListClips(ctx context.Context, vodID string) ([]backend.Clip, error)
	PolishWithSilence(ctx context.Context, segmentID string, force bool) (backend.PolishResponse, error)
	UploadMedia(ctx context.Context, req backend.UploadRequest) (backend.UploadResponse, error)
}

// RunOption adjusts a single stage run.
type RunOption func(*runOptions)

type runOptions struct {
	force bool
}

// WithForce overrides workflow.force_polish for a polish run.
func WithForce(force bool) RunOption {
	return func(o *runOptions) {
		o.force = force
	}
}

// Runner executes pipeline stages for queue items and records their runs.
type Runner struct {
	cfg    *config.Config
	store  *queue.Store
	client Backend
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	inflight map[runKey]struct{}
	health   healthCache
}

type runKey struct {
	itemID int64
	stage  string
}

// NewRunner builds a Runner. A nil logger discards output.
func NewRunner(cfg *config.Config, store *queue.Store, client Backend, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		client:   client,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		now:      time.Now,
		inflight: make(map[runKey]struct{}),
	}
}

// Store exposes the queue store the runner records into.
func (r *Runner) Store() *queue.Store {
	return r.store
}

// Run executes one stage for item and records the outcome. The returned run
// reflects what was persisted; a failed precondition yields an error wrapping
// services.ErrValidation without contacting the backend.
func (r *Runner) Run(ctx context.Context, item *queue.Item, stageKey string, opts ...RunOption) (queue.StageRun, error) {
	if item == nil {
		return queue.StageRun{}, services.Wrap(services.ErrValidation, stageKey, "run", "item is required", nil)
	}
	def, ok := definitions[stageKey]
	if !ok {
		return queue.StageRun{}, services.Wrap(services.ErrValidation, stageKey, "run", fmt.Sprintf("unknown stage %q", stageKey), nil)
	}
	options := runOptions{force: r.cfg.Workflow.ForcePolish}
	for _, opt := range opts {
		opt(&options)
	}

	return r.record(ctx, item, stageKey,
		func(runs map[string]queue.StageRun) string { return def.check(r, item, runs) },
		func(ctx context.Context) (string, error) { return def.exec(ctx, r, item, options) },
	)
}

// record wraps exec with the in-flight guard, the precondition and the stage
// run bookkeeping shared by single runs and fan-outs. When exec fails with a
// non-empty output, that output is recorded instead of the error text.
func (r *Runner) record(
	ctx context.Context,
	item *queue.Item,
	stageKey string,
	check func(map[string]queue.StageRun) string,
	exec func(context.Context) (string, error),
) (queue.StageRun, error) {
	ctx = services.WithStage(services.WithItemID(ctx, item.ID), stageKey)
	logger := logging.WithContext(ctx, r.logger)

	if !r.acquire(item.ID, stageKey) {
		return queue.StageRun{}, services.Wrap(services.ErrValidation, stageKey, "run", "stage is already running", ErrStageRunning)
	}
	defer r.release(item.ID, stageKey)

	runs, err := r.stageRunMap(ctx, item.ID)
	if err != nil {
		return queue.StageRun{}, err
	}
	previous := runs[stageKey]
	if previous.Status == queue.StageRunning {
		return previous, services.Wrap(services.ErrValidation, stageKey, "run", "stage is already running", ErrStageRunning)
	}

	if check != nil {
		if message := check(runs); message != "" {
			run := previous
			run.Status = queue.StageError
			run.Output = message
			run.FinishedAt = r.timestamp()
			if err := r.store.SetStageRun(ctx, run); err != nil {
				return run, err
			}
			logger.Warn("stage precondition failed",
				logging.String(logging.FieldEventType, "stage_precondition"),
				logging.String("reason", message),
			)
			return run, stage.Precondition(stageKey, message)
		}
	}

	run := queue.StageRun{
		ItemID:    item.ID,
		Stage:     stageKey,
		Status:    queue.StageRunning,
		Output:    previous.Output,
		Attempts:  previous.Attempts + 1,
		StartedAt: r.timestamp(),
	}
	if err := r.store.SetStageRun(ctx, run); err != nil {
		return run, err
	}
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", run.Attempts),
	)

	before := *item
	started := r.now()
	output, execErr := exec(ctx)
	run.FinishedAt = r.timestamp()
	switch {
	case execErr == nil:
		run.Status = queue.StageSuccess
		run.Output = output
	case output != "":
		run.Status = queue.StageError
		run.Output = output
	default:
		run.Status = queue.StageError
		run.Output = stage.OutputOf(execErr)
	}

	// A cancelled caller still leaves a finished record.
	persistCtx := context.WithoutCancel(ctx)
	if err := r.store.SetStageRun(persistCtx, run); err != nil {
		return run, err
	}
	if execErr == nil {
		if err := r.saveDerived(persistCtx, &before, item); err != nil {
			return run, err
		}
	}

	if execErr != nil {
		details := services.DetailsOf(execErr)
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldErrorHint, services.Hint(execErr)),
			logging.Duration("elapsed", r.now().Sub(started)),
			logging.Error(execErr),
		)
		return run, execErr
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", r.now().Sub(started)),
	)
	return run, nil
}

// saveDerived writes the columns item gained since before. Results computed
// for a URL the operator has since replaced are dropped and item is reloaded.
func (r *Runner) saveDerived(ctx context.Context, before, item *queue.Item) error {
	applied, err := r.store.Patch(ctx, item.ID, before.VODURL, queue.DerivedChanges(before, item))
	if err != nil || applied {
		return err
	}
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "vod url changed meanwhile; derived fields not applied", "stale_vod_url",
		logging.String("vod_url", before.VODURL),
		logging.String(logging.FieldErrorHint, "rerun the stage for the new url"),
	)
	return r.reload(ctx, item)
}

// reload refreshes the URL-derived fields of item from the store.
func (r *Runner) reload(ctx context.Context, item *queue.Item) error {
	fresh, err := r.store.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	if fresh == nil {
		return services.Wrap(services.ErrNotFound, "", "reload item", fmt.Sprintf("queue item %d no longer exists", item.ID), nil)
	}
	item.VODURL = fresh.VODURL
	item.VODID = fresh.VODID
	item.SegmentIndex = fresh.SegmentIndex
	item.SelectedSegmentID = fresh.SelectedSegmentID
	item.PolishedPath = fresh.PolishedPath
	item.ClipsJSON = fresh.ClipsJSON
	return nil
}

func (r *Runner) acquire(itemID int64, stageKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := runKey{itemID: itemID, stage: stageKey}
	if _, busy := r.inflight[key]; busy {
		return false
	}
	r.inflight[key] = struct{}{}
	return true
}

func (r *Runner) release(itemID int64, stageKey string) {
	r.mu.Lock()
	delete(r.inflight, runKey{itemID: itemID, stage: stageKey})
	r.mu.Unlock()
}

func (r *Runner) stageRunMap(ctx context.Context, itemID int64) (map[string]queue.StageRun, error) {
	runs, err := r.store.StageRuns(ctx, itemID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]queue.StageRun, len(runs))
	for _, run := range runs {
		out[run.Stage] = run
	}
	return out, nil
}

func (r *Runner) timestamp() *time.Time {
	now := r.now().UTC()
	return &now
}
