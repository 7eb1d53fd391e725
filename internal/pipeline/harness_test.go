package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vodpipe/internal/backend"
	"vodpipe/internal/config"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
	"vodpipe/internal/testsupport"
)

type harness struct {
	cfg     *config.Config
	store   *queue.Store
	backend *testsupport.FakeBackend
	runner  *pipeline.Runner
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	fake := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fake.URL()))
	for _, fn := range mutate {
		fn(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	client := backend.NewFromConfig(cfg, nil)
	return &harness{
		cfg:     cfg,
		store:   store,
		backend: fake,
		runner:  pipeline.NewRunner(cfg, store, client, nil),
	}
}

// item creates a manual job with the given URL and optional stored VOD id.
func (h *harness) item(t *testing.T, vodURL, vodID string) *queue.Item {
	t.Helper()
	item := testsupport.NewVOD(t, h.store, vodURL, queue.ModeManual)
	if vodID != "" {
		item.VODID = vodID
		require.NoError(t, h.store.Update(context.Background(), item))
	}
	return item
}

func (h *harness) reload(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func (h *harness) stageRun(t *testing.T, id int64, stage string) queue.StageRun {
	t.Helper()
	run, err := h.store.StageRun(context.Background(), id, stage)
	require.NoError(t, err)
	return run
}

func (h *harness) withClips(t *testing.T, item *queue.Item, clips ...backend.Clip) {
	t.Helper()
	require.NoError(t, item.SetClips(clips))
	require.NoError(t, h.store.Update(context.Background(), item))
}
