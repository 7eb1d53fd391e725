package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vodpipe/internal/config"
)

const userAgent = "vodpipe/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventStageFailed    Event = "stage_failed"
	EventVODCompleted   Event = "vod_completed"
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventClipDone       Event = "clip_done"
	EventTest           Event = "test"
)

// Payload carries event specific fields.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventStageFailed:
		return n.toggles.StageFailures
	case EventVODCompleted, EventQueueStarted, EventQueueCompleted:
		return n.toggles.Pipeline
	case EventClipDone:
		return n.toggles.ClipDone
	case EventTest:
		return true
	default:
		return false
	}
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventStageFailed:
		label := payload.text("stage")
		if id := payload.int("item"); id > 0 {
			label = fmt.Sprintf("%s (item #%d)", label, id)
		}
		detail := payload.text("error")
		if detail == "" {
			detail = "unknown"
		}
		return message{
			title:    "vodpipe - Stage Failed",
			body:     fmt.Sprintf("Error in %s: %s", strings.TrimSpace(label), detail),
			tags:     []string{"vodpipe", "error", "alert"},
			priority: "high",
		}, true
	case EventVODCompleted:
		return message{
			title: "vodpipe - VOD Complete",
			body:  fmt.Sprintf("VOD %s delivered: %d clips uploaded", payload.text("vodId"), payload.int("clips")),
			tags:  []string{"vodpipe", "vod", "completed"},
		}, true
	case EventQueueStarted:
		return message{
			title: "vodpipe - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %d items", payload.int("count")),
			tags:  []string{"vodpipe", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return queueCompleted(payload), true
	case EventClipDone:
		body := "Clip ready"
		if source := payload.text("source"); source != "" {
			body += " (" + source + ")"
		}
		if url := payload.text("url"); url != "" {
			body += ": " + url
		}
		return message{
			title: "vodpipe - Clip Done",
			body:  body,
			tags:  []string{"vodpipe", "clip", "done"},
		}, true
	case EventTest:
		return message{
			title:    "vodpipe - Test",
			body:     "Notification system test",
			tags:     []string{"vodpipe", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func queueCompleted(payload Payload) message {
	duration, _ := payload["duration"].(time.Duration)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	processed := payload.int("processed")
	failed := payload.int("failed")
	if failed == 0 {
		return message{
			title: "vodpipe - Queue Complete",
			body:  fmt.Sprintf("Queue processing complete: %d VODs processed in %s", processed, duration),
			tags:  []string{"vodpipe", "queue", "completed"},
		}
	}
	return message{
		title: "vodpipe - Queue Complete (with errors)",
		body:  fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, duration),
		tags:  []string{"vodpipe", "queue", "completed"},
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
