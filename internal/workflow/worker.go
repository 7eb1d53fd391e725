package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vodpipe/internal/logging"
)

// laneWorker polls the queue for one lane and runs one stage at a time.
type laneWorker struct {
	m      *Manager
	lane   *lane
	logger *slog.Logger
}

func (w *laneWorker) run(ctx context.Context) {
	poll := seconds(w.m.cfg.Workflow.QueuePollInterval)
	backoff := seconds(w.m.cfg.Workflow.ErrorRetryInterval)
	busy := w.lane.busyStatuses()
	ready := w.lane.readyStatuses()

	for ctx.Err() == nil {
		if err := w.m.heartbeats.reclaim(ctx, w.logger, busy); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("reclaim stale processing failed; stuck items may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		item, err := w.m.store.NextForStatuses(ctx, ready...)
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			w.m.setLastError(err)
			w.logger.Error("failed to fetch next queue item",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			sleep(ctx, backoff)
		case item == nil:
			sleep(ctx, poll)
		default:
			step, ok := w.lane.stepFor(item.Status)
			if !ok {
				w.logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
				sleep(ctx, poll)
				continue
			}
			newAttempt(ctx, w, step, item).run()
		}
	}
}

// minIdle keeps a zero poll interval from spinning on the database.
const minIdle = 25 * time.Millisecond

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) {
	d = max(d, minIdle)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
