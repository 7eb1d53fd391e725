package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"vodpipe/internal/events"
	"vodpipe/internal/logging"
	"vodpipe/internal/notifications"
)

// eventBridge persists backend socket events, mirrors backend log lines into
// the daemon log and turns clip_done into a notification.
type eventBridge struct {
	store    eventStore
	notifier notifications.Service
	logger   *slog.Logger
	received atomic.Uint64
}

type eventStore interface {
	AppendEvent(ctx context.Context, name, payload string, receivedAt time.Time) (int64, error)
}

func (d *Daemon) startEvents(ctx context.Context) error {
	hub := events.NewHub(d.cfg.Events.BufferSize)
	listener, err := events.NewListenerFromConfig(d.cfg, hub, d.logger)
	if err != nil {
		hub.Close()
		return fmt.Errorf("event listener: %w", err)
	}
	ch := make(chan events.Event, max(d.cfg.Events.BufferSize, 1))
	if err := hub.Subscribe(eventSubscriber, ch); err != nil {
		hub.Close()
		return fmt.Errorf("event subscribe: %w", err)
	}

	bridge := &eventBridge{
		store:    d.store,
		notifier: d.notifier,
		logger:   logging.NewComponentLogger(d.logger, "backend"),
	}
	d.eventHub = hub
	d.listener = listener
	d.bridge = bridge

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		_ = listener.Run(ctx)
	}()
	go func() {
		defer d.wg.Done()
		bridge.consume(ctx, ch)
	}()
	return nil
}

func (d *Daemon) stopEvents() {
	if d.eventHub == nil {
		return
	}
	if stats, err := d.eventHub.Stats(eventSubscriber); err == nil && stats.Dropped > 0 {
		d.logger.Warn("backend events dropped while the daemon was busy",
			logging.Int64("dropped", int64(stats.Dropped)),
			logging.String(logging.FieldImpact, "some backend events were not persisted"),
		)
	}
	d.eventHub.Close()
}

func (d *Daemon) eventsStatus() EventsStatus {
	status := EventsStatus{Enabled: d.cfg.Events.Enabled}
	if d.listener != nil {
		status.Connected = d.listener.Connected()
		status.Sessions = d.listener.Sessions()
	}
	if d.bridge != nil {
		status.Received = d.bridge.received.Load()
	}
	return status
}

func (b *eventBridge) consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			b.handle(ctx, evt)
		}
	}
}

func (b *eventBridge) handle(ctx context.Context, evt events.Event) {
	b.received.Add(1)
	if _, err := b.store.AppendEvent(ctx, evt.Name, string(evt.Payload), evt.ReceivedAt); err != nil {
		logging.WarnWithContext(b.logger, "failed to persist backend event", "event_persist_failed",
			logging.String("event", evt.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "event missing from GET /api/events"),
		)
	}

	switch evt.Name {
	case events.NameLog:
		line, err := evt.Log()
		if err != nil {
			b.logger.Debug("undecodable backend log event", logging.Error(err))
			return
		}
		b.logger.Log(ctx, logging.ParseLevel(line.Level), line.Msg,
			logging.String(logging.FieldEventType, "backend_log"),
			logging.String("backend_ts", line.Timestamp),
		)
	case events.NameClipDone:
		clip, err := evt.ClipDone()
		if err != nil {
			b.logger.Warn("undecodable clip_done event", logging.Error(err))
			return
		}
		b.logger.Info("clip done",
			logging.String(logging.FieldEventType, "clip_done"),
			logging.String("url", clip.URL),
			logging.String("source", clip.Source),
			logging.Any("duration", clip.Duration),
		)
		if err := b.notifier.Publish(ctx, notifications.EventClipDone, notifications.Payload{
			"url":      clip.URL,
			"source":   clip.Source,
			"duration": clip.Duration,
		}); err != nil {
			logging.WarnWithContext(b.logger, "clip notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	default:
		b.logger.Debug("backend event", logging.String("summary", evt.Summary()))
	}
}
