package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/notifications"
	"vodpipe/internal/queue"
	"vodpipe/internal/stage"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	heartbeats *heartbeats
	itemLogs   *ItemLogs

	mu       sync.RWMutex
	lanes    []*lane
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item

	// queueStart is non-zero while a batch of automatic work is in flight.
	queueStart time.Time
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastItem    *queue.Item
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
	Lanes       map[queue.Lane][]string
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		notifier: notifier,
		heartbeats: &heartbeats{
			store:    store,
			logger:   logging.NewComponentLogger(logger, "workflow-heartbeat"),
			interval: seconds(cfg.Workflow.HeartbeatInterval),
			timeout:  seconds(cfg.Workflow.HeartbeatTimeout),
		},
		itemLogs: NewItemLogs(cfg),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Start launches one worker per configured lane.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("workflow already running")
	}
	if len(m.lanes) == 0 {
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, l := range m.lanes {
		w := &laneWorker{
			m:      m,
			lane:   l,
			logger: m.logger.With(logging.String(logging.FieldComponent, "workflow-"+string(l.kind)+"-runner")),
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(runCtx)
		}()
	}
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.itemLogs.Close()
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:     m.cancel != nil,
		LastItem:    cloneItem(m.lastItem),
		StageHealth: make(map[string]stage.Health),
		Lanes:       make(map[queue.Lane][]string, len(m.lanes)),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	lanes := m.lanes
	m.mu.RUnlock()

	for _, l := range lanes {
		summary.Lanes[l.kind] = l.stageNames()
		for _, s := range l.steps {
			summary.StageHealth[s.Stage] = s.handler.HealthCheck(ctx)
		}
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	m.lastItem = cloneItem(item)
	m.mu.Unlock()
}

func cloneItem(item *queue.Item) *queue.Item {
	if item == nil {
		return nil
	}
	cp := *item
	return &cp
}
