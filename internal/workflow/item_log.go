package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vodpipe/internal/config"
	"vodpipe/internal/logging"
)

// ItemLogs keeps one append-only log file per queue item under
// <log_dir>/items so a VOD's whole history can be read in one place.
type ItemLogs struct {
	baseDir string
	level   string
	format  string

	mu       sync.Mutex
	files    map[int64]*os.File
	handlers map[int64]slog.Handler
}

// NewItemLogs creates the per-item log registry.
func NewItemLogs(cfg *config.Config) *ItemLogs {
	logs := &ItemLogs{
		level:    "info",
		format:   "json",
		files:    make(map[int64]*os.File),
		handlers: make(map[int64]slog.Handler),
	}
	if cfg != nil {
		if cfg.Paths.LogDir != "" {
			logs.baseDir = ItemLogDir(cfg)
		}
		if strings.TrimSpace(cfg.Logging.Level) != "" {
			logs.level = cfg.Logging.Level
		}
	}
	return logs
}

// ItemLogDir is the directory holding per-item logs.
func ItemLogDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "items")
}

// Path returns the log file of an item.
func (l *ItemLogs) Path(itemID int64) string {
	if l.baseDir == "" {
		return ""
	}
	return filepath.Join(l.baseDir, fmt.Sprintf("item-%d.log", itemID))
}

// Handler returns the cached handler for an item, opening its file on first use.
func (l *ItemLogs) Handler(itemID int64) (slog.Handler, error) {
	path := l.Path(itemID)
	if path == "" {
		return nil, errors.New("item log directory not configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if handler, ok := l.handlers[itemID]; ok {
		return handler, nil
	}
	if err := os.MkdirAll(l.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure item log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open item log: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: l.level, Format: l.format, Writer: file})
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	l.files[itemID] = file
	l.handlers[itemID] = logger.Handler()
	return logger.Handler(), nil
}

// Close releases every open item log.
func (l *ItemLogs) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, file := range l.files {
		_ = file.Close()
		delete(l.files, id)
		delete(l.handlers, id)
	}
}

// Release closes the log of an item that left the pipeline. A later stage run
// reopens it in append mode.
func (l *ItemLogs) Release(itemID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if file, ok := l.files[itemID]; ok {
		_ = file.Close()
		delete(l.files, itemID)
		delete(l.handlers, itemID)
	}
}
