package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names files to prune: those in Dir matching Pattern (all
// files when empty), except the paths in Exclude such as the active log.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes target files last modified more than retentionDays
// ago and returns how many were removed. Zero days disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	p := pruner{
		logger: logger,
		cutoff: time.Now().AddDate(0, 0, -retentionDays),
		keep:   make(map[string]bool),
	}
	for _, t := range targets {
		for _, path := range t.Exclude {
			if abs := absPath(path); abs != "" {
				p.keep[abs] = true
			}
		}
	}
	removed := 0
	for _, t := range targets {
		removed += p.prune(t)
	}
	return removed
}

type pruner struct {
	logger *slog.Logger
	cutoff time.Time
	keep   map[string]bool
}

func (p pruner) prune(target RetentionTarget) int {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	pattern := strings.TrimSpace(target.Pattern)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !matches(pattern, entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if abs := absPath(path); abs != "" {
			path = abs
		}
		if p.keep[path] || !p.expired(entry) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(p.logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		p.logger.Info("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
	}
	return removed
}

func (p pruner) expired(entry os.DirEntry) bool {
	info, err := entry.Info()
	return err == nil && info.ModTime().Before(p.cutoff)
}

func matches(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	return abs
}
