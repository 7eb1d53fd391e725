package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
)

// heartbeats refreshes last_heartbeat for running items and hands items with
// an expired heartbeat back to their stage's ready status.
type heartbeats struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func (h *heartbeats) reclaim(ctx context.Context, logger *slog.Logger, statuses []queue.Status) error {
	if h.timeout <= 0 || len(statuses) == 0 {
		return nil
	}
	n, err := h.store.ReclaimStaleProcessing(ctx, time.Now().Add(-h.timeout), statuses...)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("reclaimed stale items",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "heartbeat_reclaimed"),
		)
	}
	return nil
}

// keepAlive beats for itemID until the returned stop func is called. stop
// waits for the beating goroutine to exit.
func (h *heartbeats) keepAlive(ctx context.Context, itemID int64) (stop func()) {
	if h.interval <= 0 {
		return func() {}
	}
	beatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.beat(beatCtx, itemID)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (h *heartbeats) beat(ctx context.Context, itemID int64) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	logger := logging.WithContext(ctx, h.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := h.store.UpdateHeartbeat(ctx, itemID)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Debug("heartbeat update cancelled")
		default:
			logger.Warn("heartbeat update failed", logging.Error(err))
		}
	}
}
