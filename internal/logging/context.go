package logging

import (
	"context"
	"log/slog"

	"vodpipe/internal/services"
)

// Structured field keys shared by every handler and by log consumers.
const (
	FieldComponent     = "component"
	FieldItemID        = "item_id"
	FieldStage         = "stage"
	FieldLane          = "lane"
	FieldVODID         = "vod_id"
	FieldSegmentID     = "segment_id"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"

	// FieldErrorKind carries the services error marker of a failure.
	FieldErrorKind = "error_kind"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	FieldAlert  = "alert"
)

// ContextFields turns the services scope carried by ctx into log attributes.
// Unset scope fields are omitted.
func ContextFields(ctx context.Context) []slog.Attr {
	scope := services.ScopeFrom(ctx)
	var fields []slog.Attr
	if scope.ItemID != 0 {
		fields = append(fields, slog.Int64(FieldItemID, scope.ItemID))
	}
	for _, f := range [...]struct{ key, value string }{
		{FieldStage, scope.Stage},
		{FieldLane, scope.Lane},
		{FieldCorrelationID, scope.RequestID},
	} {
		if f.value != "" {
			fields = append(fields, slog.String(f.key, f.value))
		}
	}
	return fields
}

// WithContext returns logger with the scope fields of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(asArgs(fields)...)
	}
	return logger
}
