package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names emitted by the backend.
const (
	NameLog      = "log"
	NameClipDone = "clip_done"
)

// Clip sources reported by clip_done.
const (
	SourceManual = "manual"
	SourceVOD    = "vod"
)

// Event is one Socket.IO event received from the backend.
type Event struct {
	Sequence   uint64          `json:"seq"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// LogLine is the payload of a log event.
type LogLine struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Timestamp string `json:"timestamp"`
}

// ClipDone is the payload of a clip_done event.
type ClipDone struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Source   string  `json:"source"`
}

// Log decodes the payload of a log event.
func (e Event) Log() (LogLine, error) {
	var line LogLine
	if e.Name != NameLog {
		return line, fmt.Errorf("event %q is not a log event", e.Name)
	}
	if err := json.Unmarshal(e.Payload, &line); err != nil {
		return line, fmt.Errorf("decode log event: %w", err)
	}
	return line, nil
}

// ClipDone decodes the payload of a clip_done event.
func (e Event) ClipDone() (ClipDone, error) {
	var clip ClipDone
	if e.Name != NameClipDone {
		return clip, fmt.Errorf("event %q is not a clip_done event", e.Name)
	}
	if err := json.Unmarshal(e.Payload, &clip); err != nil {
		return clip, fmt.Errorf("decode clip_done event: %w", err)
	}
	return clip, nil
}

// Summary renders the event as a single human-readable line.
func (e Event) Summary() string {
	switch e.Name {
	case NameLog:
		if line, err := e.Log(); err == nil {
			return fmt.Sprintf("[%s] %s", line.Level, line.Msg)
		}
	case NameClipDone:
		if clip, err := e.ClipDone(); err == nil {
			return fmt.Sprintf("clip done (%s, %.1fs): %s", clip.Source, clip.Duration, clip.URL)
		}
	}
	return fmt.Sprintf("%s %s", e.Name, string(e.Payload))
}
