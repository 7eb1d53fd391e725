package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"vodpipe/internal/backend"
	"vodpipe/internal/config"
	"vodpipe/internal/daemon"
	"vodpipe/internal/logging"
	"vodpipe/internal/notifications"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
	"vodpipe/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// Ready is called with the API address once the daemon has started.
	Ready func(apiAddr string)
}

// Run starts the daemon and blocks until cmdCtx is cancelled or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logHub := logging.NewStreamHub(4096)
	runCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		runCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&runCfg, logHub)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	runner := pipeline.NewRunner(cfg, store, backend.NewFromConfig(cfg, logger), logger)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)

	d, err := daemon.New(cfg, store, logger, manager,
		daemon.WithRunner(runner),
		daemon.WithLogStream(logHub),
		daemon.WithNotifier(notifier),
	)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file, api_bind and queue database access"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.APIAddr())
	}

	<-signalCtx.Done()
	logger.Info("vodpipe daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("backend_url", cfg.Backend.BaseURL),
		logging.String("media_server_url", cfg.Backend.MediaServerURL),
		logging.Bool("events_enabled", cfg.Events.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Bool("write_results", cfg.Workflow.WriteResults),
		logging.Int("polish_concurrency", cfg.Workflow.PolishConcurrency),
	)
}
