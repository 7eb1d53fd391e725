package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vodpipe/internal/apiclient"
	"vodpipe/internal/backend"
	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
	"vodpipe/internal/queueaccess"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) apiClient() (*apiclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return apiclient.NewFromConfig(cfg)
}

// withQueue runs fn against the daemon API when it answers and against the
// queue database otherwise.
func (c *commandContext) withQueue(cmd *cobra.Command, fn func(queueaccess.Access) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := c.apiClient()
	if err != nil {
		return err
	}
	session, err := queueaccess.OpenWithFallback(cmd.Context(), client, func() (*queue.Store, error) {
		return queue.Open(cfg)
	})
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access)
}

// withStore opens the queue database for commands that only make sense locally.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// withItem loads one queue item and a local runner bound to it.
func (c *commandContext) withItem(cmd *cobra.Command, id int64, fn func(*pipeline.Runner, *queue.Item) error) error {
	return c.withStore(func(store *queue.Store) error {
		item, err := loadItem(cmd.Context(), store, id)
		if err != nil {
			return err
		}
		return fn(c.newRunner(cmd, store), item)
	})
}

func (c *commandContext) newRunner(cmd *cobra.Command, store *queue.Store) *pipeline.Runner {
	cfg := c.config
	logger := c.cliLogger(cmd)
	return pipeline.NewRunner(cfg, store, backend.NewFromConfig(cfg, logger), logger)
}

func (c *commandContext) backendClient(cmd *cobra.Command) (*backend.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return backend.NewFromConfig(cfg, c.cliLogger(cmd)), nil
}

// cliLogger writes warnings and errors to stderr in console form.
func (c *commandContext) cliLogger(cmd *cobra.Command) *slog.Logger {
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Writer: cmd.ErrOrStderr()})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func loadItem(ctx context.Context, store *queue.Store, id int64) (*queue.Item, error) {
	if id <= 0 {
		return nil, fmt.Errorf("--item is required")
	}
	item, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("queue item %d not found", id)
	}
	return item, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
