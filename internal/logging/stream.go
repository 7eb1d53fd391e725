package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// streamHandler mirrors every record into a StreamHub before passing it on.
type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(eventFromRecord(record, h.attrs))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &streamHandler{
		next:  h.next.WithAttrs(attrs),
		hub:   h.hub,
		attrs: append(slices.Clip(h.attrs), attrs...),
	}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}

// eventFromRecord flattens handler attrs then record attrs into a LogEvent,
// so call-site values win.
func eventFromRecord(record slog.Record, handlerAttrs []slog.Attr) LogEvent {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	for _, attr := range handlerAttrs {
		evt.set(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		evt.set(attr)
		return true
	})
	return evt
}

func (e *LogEvent) set(attr slog.Attr) {
	key := strings.TrimSpace(attr.Key)
	if key == "" {
		return
	}
	if key == FieldItemID {
		e.ItemID = attr.Value.Resolve().Int64()
		return
	}
	value := attrString(attr.Value)
	switch key {
	case FieldStage:
		e.Stage = value
	case FieldLane:
		e.Lane = value
	case FieldCorrelationID:
		e.CorrelationID = value
	case FieldComponent:
		e.Component = value
	default:
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[key] = value
	}
}
