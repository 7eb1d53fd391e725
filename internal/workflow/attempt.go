package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/services"
	"vodpipe/internal/stage"
)

// attempt is one pass of an item through a single stage.
type attempt struct {
	ctx     context.Context
	m       *Manager
	lane    *lane
	step    boundStep
	item    *queue.Item
	logger  *slog.Logger
	started time.Time
}

func newAttempt(ctx context.Context, w *laneWorker, step boundStep, item *queue.Item) *attempt {
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithStage(ctx, step.Stage)
	ctx = services.WithLane(ctx, string(w.lane.kind))
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return &attempt{
		ctx:    ctx,
		m:      w.m,
		lane:   w.lane,
		step:   step,
		item:   item,
		logger: w.m.stageLogger(ctx, w.logger, item),
	}
}

// run drives the attempt to a terminal outcome. Errors are recorded on the
// item and the manager; a shutdown leaves the item in its processing status
// for the reclaimer.
func (a *attempt) run() {
	if err := a.claim(); err != nil {
		a.logger.Error("failed to transition item to processing", logging.Error(err))
		a.m.setLastError(err)
		return
	}

	a.started = time.Now()
	a.logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(a.step.Processing)),
		logging.String(logging.FieldVODID, strings.TrimSpace(a.item.VODID)),
		logging.String("vod_url", strings.TrimSpace(a.item.VODURL)),
	)

	if err := a.step.handler.Prepare(a.ctx, a.item); err != nil {
		a.fail(err)
		return
	}
	if err := a.m.store.UpdateState(a.ctx, a.item); err != nil {
		a.persistFailed("persist stage preparation", err)
		return
	}

	err := a.executeWithHeartbeat()
	switch {
	case errors.Is(err, context.Canceled):
		a.logger.Debug("stage interrupted by shutdown")
	case err != nil:
		a.fail(err)
	default:
		a.complete()
	}
}

func (a *attempt) claim() error {
	now := time.Now().UTC()
	a.item.Status = a.step.Processing
	a.item.ErrorMessage = ""
	a.item.LastHeartbeat = &now
	if err := a.m.store.UpdateState(a.ctx, a.item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	a.m.setLastItem(a.item)
	if a.lane.notifies() {
		a.m.onItemStarted(a.ctx)
	}
	return nil
}

func (a *attempt) executeWithHeartbeat() error {
	stop := a.m.heartbeats.keepAlive(a.ctx, a.item.ID)
	defer stop()
	return a.step.handler.Execute(a.ctx, a.item)
}

func (a *attempt) complete() {
	item := a.item
	if item.Status == a.step.Processing || item.Status == "" {
		item.Status = a.step.Done
	}
	item.LastHeartbeat = nil
	finished := item.Status == queue.StatusCompleted
	if finished {
		item.SetProgressComplete(a.step.Stage, "Completed")
	}
	if err := a.m.store.UpdateState(a.ctx, item); err != nil {
		a.persistFailed("persist stage result", err)
		return
	}
	a.logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.String("progress_message", strings.TrimSpace(item.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(a.started)),
	)
	a.m.setLastItem(item)
	if finished {
		a.m.notifyVODCompleted(a.ctx, item)
		a.m.itemLogs.Release(item.ID)
	}
	a.m.checkQueueCompletion(a.ctx)
}

func (a *attempt) fail(stageErr error) {
	a.m.setLastError(stageErr)
	message := failureText(a.step.Stage, stageErr)
	a.item.SetFailed(a.step.Stage, message)

	details := services.DetailsOf(stageErr)
	a.logger.Error("stage failed",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String("error_operation", details.Operation),
		logging.String(logging.FieldErrorHint, services.Hint(stageErr)),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := a.m.store.UpdateState(a.ctx, a.item); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			a.logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	a.m.setLastItem(a.item)
	a.m.notifyStageError(a.ctx, a.step.Stage, a.item, message)
	a.m.checkQueueCompletion(a.ctx)
	a.m.itemLogs.Release(a.item.ID)
}

func (a *attempt) persistFailed(what string, err error) {
	wrapped := fmt.Errorf("%s: %w", what, err)
	a.logger.Error("failed to "+what, logging.Error(wrapped))
	a.m.setLastError(wrapped)
}

// failureText is the operator-facing failure message. The backend's own
// error text wins when there is one.
func failureText(stageName string, err error) string {
	if err != nil {
		if msg := strings.TrimSpace(stage.OutputOf(err)); msg != "" {
			return msg
		}
	}
	switch {
	case err == nil && stageName == "":
		return "workflow failed without error detail"
	case err == nil:
		return stageName + " failed without error detail"
	case stageName == "":
		return "workflow failed"
	default:
		return stageName + " failed"
	}
}
