package logging

import (
	"context"
	"strings"
	"sync"
	"time"
)

const defaultHubCapacity = 512

// LogEvent represents a structured log line published to the streaming hub.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	ItemID        int64             `json:"item_id,omitempty"`
	Lane          string            `json:"lane,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// StreamHub keeps the most recent log events in a ring and lets readers
// block until newer ones arrive. Sequence numbers start at 1 and never
// repeat, so a reader resumes with the last sequence it saw.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	head    int // index of the oldest event
	size    int
	lastSeq uint64
	// changed is closed and replaced on every Publish.
	changed chan struct{}
}

// NewStreamHub returns a hub holding at most capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}
	return &StreamHub{ring: make([]LogEvent, capacity), changed: make(chan struct{})}
}

// Publish stamps evt with the next sequence and stores it, evicting the
// oldest event when full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	h.lastSeq++
	evt.Sequence = h.lastSeq
	if h.size < len(h.ring) {
		h.ring[(h.head+h.size)%len(h.ring)] = evt
		h.size++
	} else {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % len(h.ring)
	}
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()
}

// Fetch returns up to limit events newer than since plus the latest
// sequence. With wait set it blocks until there is at least one event or
// ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events := h.after(since, h.clampLimit(limit))
		last, changed := h.lastSeq, h.changed
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, last, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, last, ctx.Err()
		case <-changed:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	limit = h.clampLimit(limit)
	skip := max(h.size-limit, 0)
	return h.copyRange(skip, h.size), h.lastSeq
}

func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > len(h.ring) {
		return len(h.ring)
	}
	return limit
}

// after returns events with a sequence above since. Sequences in the ring
// are contiguous, so the offset is computed rather than searched.
func (h *StreamHub) after(since uint64, limit int) []LogEvent {
	if h.size == 0 || since >= h.lastSeq {
		return nil
	}
	oldest := h.lastSeq - uint64(h.size) + 1
	from := 0
	if since >= oldest {
		from = int(since - oldest + 1)
	}
	return h.copyRange(from, min(from+limit, h.size))
}

func (h *StreamHub) copyRange(from, to int) []LogEvent {
	if from >= to {
		return nil
	}
	out := make([]LogEvent, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, h.ring[(h.head+i)%len(h.ring)])
	}
	return out
}

// FilterEvents keeps events matching the item and component filters. Zero
// values disable the corresponding filter.
func FilterEvents(events []LogEvent, itemID int64, component string) []LogEvent {
	component = strings.TrimSpace(component)
	if itemID == 0 && component == "" {
		return events
	}
	var out []LogEvent
	for _, evt := range events {
		if itemID != 0 && evt.ItemID != itemID {
			continue
		}
		if component != "" && !strings.EqualFold(evt.Component, component) {
			continue
		}
		out = append(out, evt)
	}
	return out
}
