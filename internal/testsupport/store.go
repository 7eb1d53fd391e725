package testsupport

import (
	"context"
	"testing"

	"vodpipe/internal/config"
	"vodpipe/internal/queue"
)

// MustOpenStore opens the queue database named by cfg and closes it when
// the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store at %s: %v", cfg.QueueDBPath(), err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close queue store: %v", err)
		}
	})
	return store
}

// NewVOD enqueues url in the given mode.
func NewVOD(t testing.TB, store *queue.Store, url string, mode queue.Mode) *queue.Item {
	t.Helper()
	item, err := store.NewVOD(context.Background(), url, mode)
	if err != nil {
		t.Fatalf("enqueue %q (%s): %v", url, mode, err)
	}
	return item
}

// MustSetStatus forces item into status and persists it.
func MustSetStatus(t testing.TB, store *queue.Store, item *queue.Item, status queue.Status) {
	t.Helper()
	item.Status = status
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("set item %d to %s: %v", item.ID, status, err)
	}
}
