package workflow

import (
	"context"
	"errors"
	"time"

	"vodpipe/internal/logging"
	"vodpipe/internal/notifications"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
)

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification dropped", logging.String("event", string(event)))
			return
		}
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, message string) {
	m.publish(ctx, notifications.EventStageFailed, notifications.Payload{
		"stage": stageName,
		"item":  item.ID,
		"error": message,
	})
}

func (m *Manager) notifyVODCompleted(ctx context.Context, item *queue.Item) {
	uploaded := 0
	if clips, err := item.Clips(); err == nil {
		for _, clip := range clips {
			if clip.Polished() {
				uploaded++
			}
		}
	}
	m.publish(ctx, notifications.EventVODCompleted, notifications.Payload{
		"vodId": pipeline.ResolvedVODID(item),
		"clips": uploaded,
	})
}

func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.warnStatsUnavailable(err, "start notification will not be sent")
		return
	}
	m.mu.Lock()
	already := !m.queueStart.IsZero()
	if !already {
		m.queueStart = time.Now()
	}
	m.mu.Unlock()
	if already {
		return
	}

	m.publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": countActiveItems(stats)})
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.warnStatsUnavailable(err, "completion notification will not be sent")
		return
	}
	if countActiveItems(stats) > 0 {
		return
	}

	m.mu.Lock()
	start := m.queueStart
	m.queueStart = time.Time{}
	m.mu.Unlock()
	if start.IsZero() {
		return
	}

	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": stats[queue.StatusCompleted],
		"failed":    stats[queue.StatusFailed],
		"duration":  time.Since(start),
	})
}

func (m *Manager) warnStatsUnavailable(err error, impact string) {
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("daemon shutting down, queue stats unavailable")
		return
	}
	m.logger.Warn("queue stats unavailable; notification skipped",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_stats_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
		logging.String(logging.FieldImpact, impact),
	)
}

// countActiveItems counts automatic work still in the pipeline.
func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		switch status {
		case queue.StatusCompleted, queue.StatusFailed, queue.StatusManual:
			continue
		}
		total += count
	}
	return total
}
