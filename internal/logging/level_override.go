package logging

import (
	"context"
	"log/slog"
	"strings"
)

// minLevelHandler drops records below min before they reach the wrapped
// handler. The wrapped handler must itself be at least as verbose.
type minLevelHandler struct {
	slog.Handler
	min slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.Handler.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.Handler.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithGroup(name), min: h.min}
}

// WithLevelOverride returns a logger whose minimum level is level. An
// existing override is replaced rather than stacked, so an override can
// also lower the level set by New.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	inner := logger.Handler()
	if existing, ok := inner.(minLevelHandler); ok {
		inner = existing.Handler
	}
	return slog.New(minLevelHandler{Handler: inner, min: level})
}

// ApplyStageOverride applies the override configured for stage, if any.
// Stage names match case-insensitively.
func ApplyStageOverride(logger *slog.Logger, stage string, overrides map[string]string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if level := overrides[strings.ToLower(strings.TrimSpace(stage))]; level != "" {
		return WithLevelOverride(logger, parseLevel(level))
	}
	return logger
}

// StageLogger tags logger with the stage name and applies its override.
func StageLogger(logger *slog.Logger, stage string, overrides map[string]string) *slog.Logger {
	return ApplyStageOverride(logger, stage, overrides).With(String(FieldStage, stage))
}
