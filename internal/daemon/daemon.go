package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vodpipe/internal/config"
	"vodpipe/internal/events"
	"vodpipe/internal/logging"
	"vodpipe/internal/notifications"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/preflight"
	"vodpipe/internal/queue"
	"vodpipe/internal/workflow"
)

const eventSubscriber = "daemon"

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	runner   *pipeline.Runner
	notifier notifications.Service
	logHub   *logging.StreamHub

	lockPath string
	lock     *flock.Flock

	eventHub *events.Hub
	listener *events.Listener
	bridge   *eventBridge
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithRunner wires the pipeline runner. The workflow manager is configured
// with its stage handlers and manual stage runs become available over the API.
func WithRunner(runner *pipeline.Runner) Option {
	return func(d *Daemon) {
		d.runner = runner
	}
}

// WithLogStream exposes hub through GET /api/logs.
func WithLogStream(hub *logging.StreamHub) Option {
	return func(d *Daemon) {
		d.logHub = hub
	}
}

// WithNotifier replaces the config-derived notifier used for clip_done events.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Daemon) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Preflight    []preflight.Result
	Events       EventsStatus
	QueueDBPath  string
	LockFilePath string
	LogPath      string
}

// EventsStatus describes the backend socket subscription.
type EventsStatus struct {
	Enabled   bool
	Connected bool
	Sessions  uint64
	Received  uint64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner != nil {
		wf.ConfigureStages(pipeline.Handlers(d.runner))
	}
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted work and launches the
// workflow manager, the event socket listener and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vodpipe daemon instance is already running")
	}

	d.recoverInterrupted(ctx)
	d.pruneLogs()
	d.workflow.Preflight(ctx)

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}

	if d.cfg.Events.Enabled {
		if err := d.startEvents(d.ctx); err != nil {
			d.workflow.Stop()
			d.abortStart()
			return err
		}
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = api.start(d.ctx)
	}
	if err != nil {
		d.stopEvents()
		d.workflow.Stop()
		d.abortStart()
		return err
	}
	d.api = api

	d.running.Store(true)
	d.logger.Info("vodpipe daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	_ = d.lock.Unlock()
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) recoverInterrupted(ctx context.Context) {
	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to reset stuck items", "queue_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "items interrupted by a previous run stay in processing until reclaimed"),
		)
	} else if reset > 0 {
		d.logger.Info("reset interrupted items", logging.Int64("count", reset))
	}
	if reset, err := d.store.ResetRunningStages(ctx, "Interrupted by daemon restart"); err != nil {
		logging.WarnWithContext(d.logger, "failed to reset running stage runs", "queue_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stage runs may show as running until rerun"),
		)
	} else if reset > 0 {
		d.logger.Info("reset interrupted stage runs", logging.Int64("count", reset))
	}
}

func (d *Daemon) pruneLogs() {
	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: d.cfg.Paths.LogDir, Pattern: "*.log", Exclude: []string{d.cfg.DaemonLogPath()}},
		logging.RetentionTarget{Dir: workflow.ItemLogDir(d.cfg), Pattern: "item-*.log"},
	)
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	d.stopEvents()
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vodpipe daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// APIAddr returns the address the HTTP API listens on, or "" before Start.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// LogStream returns the in-memory log hub, which may be nil.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// Status returns the current daemon status, running the preflight checks live.
func (d *Daemon) Status(ctx context.Context) Status {
	results := preflight.RunAll(ctx, d.cfg)
	results = append(results, preflight.CheckQueue(ctx, d.store))
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		Preflight:    results,
		Events:       d.eventsStatus(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		LogPath:      d.cfg.DaemonLogPath(),
	}
}
