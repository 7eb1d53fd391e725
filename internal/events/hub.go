package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrHubClosed          = errors.New("events: hub is closed")
	ErrSubscriberExists   = errors.New("events: subscriber already exists")
	ErrSubscriberNotFound = errors.New("events: subscriber not found")
	ErrNilChannel         = errors.New("events: nil channel provided")
)

const defaultHistory = 256

// SubscriberStats tracks delivery to one subscriber.
type SubscriberStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

type subscriber struct {
	ch    chan<- Event
	stats SubscriberStats
}

// Hub distributes backend events to subscribers. Publish never blocks: when a
// subscriber's channel is full the event is dropped for that subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	historyMu sync.Mutex
	history   []Event
	capacity  int
	seq       uint64
	published atomic.Uint64
}

// NewHub creates a hub that remembers the last capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultHistory
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		capacity:    capacity,
	}
}

// Subscribe registers ch under id.
func (h *Hub) Subscribe(id string, ch chan<- Event) error {
	if ch == nil {
		return ErrNilChannel
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if _, exists := h.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	h.subscribers[id] = &subscriber{ch: ch}
	return nil
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(h.subscribers, id)
	return nil
}

// Publish stamps the event with a sequence number, records it in history and
// offers it to every subscriber.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	h.historyMu.Lock()
	h.seq++
	evt.Sequence = h.seq
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	h.history = append(h.history, evt)
	if len(h.history) > h.capacity {
		h.history = h.history[len(h.history)-h.capacity:]
	}
	h.historyMu.Unlock()
	h.published.Add(1)

	for _, sub := range h.subscribers {
		select {
		case sub.ch <- evt:
			atomic.AddUint64(&sub.stats.Sent, 1)
		default:
			atomic.AddUint64(&sub.stats.Dropped, 1)
		}
	}
}

// Stats returns delivery counters for a subscriber.
func (h *Hub) Stats(id string) (SubscriberStats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, exists := h.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{
		Sent:    atomic.LoadUint64(&sub.stats.Sent),
		Dropped: atomic.LoadUint64(&sub.stats.Dropped),
	}, nil
}

// Published returns the number of events accepted since creation.
func (h *Hub) Published() uint64 {
	return h.published.Load()
}

// Recent returns up to limit of the newest events, oldest first. A limit of
// zero or less returns the whole history.
func (h *Hub) Recent(limit int) []Event {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	start := 0
	if limit > 0 && len(h.history) > limit {
		start = len(h.history) - limit
	}
	out := make([]Event, len(h.history)-start)
	copy(out, h.history[start:])
	return out
}

// Close drops all subscribers. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.subscribers = nil
}
