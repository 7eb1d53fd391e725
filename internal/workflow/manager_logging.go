package workflow

import (
	"context"
	"log/slog"

	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/services"
)

// stageLogger tees base into the item's own log file and applies the
// configured per-stage level override.
func (m *Manager) stageLogger(ctx context.Context, base *slog.Logger, item *queue.Item) *slog.Logger {
	if base == nil {
		base = logging.NewNop()
	}
	if item != nil {
		if handler, err := m.itemLogs.Handler(item.ID); err != nil {
			base.Warn("item log unavailable", logging.Error(err))
		} else {
			base = logging.TeeLogger(base, handler)
		}
	}

	logger := logging.WithContext(ctx, base)
	stageName, ok := services.StageFromContext(ctx)
	if !ok || m.cfg == nil {
		return logger
	}
	return logging.ApplyStageOverride(logger, stageName, m.cfg.Logging.StageOverrides)
}
