package workflow_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/notifications"
	"vodpipe/internal/queue"
	"vodpipe/internal/stage"
	"vodpipe/internal/testsupport"
	"vodpipe/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Item)
	executeHook func(*queue.Item)
	prepareErr  error
	executeErr  error
	// errFor overrides executeErr per call, numbered from 1.
	errFor func(call int) error
	health stage.Health

	mu    sync.Mutex
	calls int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.executeHook != nil {
		s.executeHook(item)
	}
	if s.errFor != nil {
		return s.errFor(call)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// allStubs returns a healthy stub for every stage key.
func allStubs() (workflow.StageSet, map[string]*stubStage) {
	set := make(workflow.StageSet)
	stubs := make(map[string]*stubStage)
	for _, key := range queue.StageKeys() {
		stub := newStubStage(key)
		set[key] = stub
		stubs[key] = stub
	}
	return set, stubs
}

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
	return nil
}

func (r *recordingNotifier) Of(event notifications.Event) []notifications.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifications.Payload
	for _, p := range r.events {
		if p.event == event {
			out = append(out, p.payload)
		}
	}
	return out
}

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 30
	return cfg
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, set workflow.StageSet, notifier notifications.Service) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		mgr.Stop()
	})
	return mgr
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status, timeout time.Duration) *queue.Item {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			item, _ := store.GetByID(context.Background(), id)
			if item != nil {
				t.Fatalf("timed out waiting for %s, item is %s (%s)", want, item.Status, item.ErrorMessage)
			}
			t.Fatalf("timed out waiting for %s", want)
		default:
		}
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
