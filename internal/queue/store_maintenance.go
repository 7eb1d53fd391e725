package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// auxiliaryTables must exist alongside queue_items for the store to work.
var auxiliaryTables = []string{"stage_runs", "backend_events"}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health folds Stats into the lifecycle buckets shown by status output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var summary HealthSummary
	for status, count := range stats {
		summary.Total += count
		*summary.bucket(status) += count
	}
	return summary, nil
}

func (h *HealthSummary) bucket(status Status) *int {
	switch status {
	case StatusManual:
		return &h.Manual
	case StatusFailed:
		return &h.Failed
	case StatusCompleted:
		return &h.Completed
	}
	if IsProcessingStatus(status) {
		return &h.Processing
	}
	return &h.Pending
}

// CheckHealth inspects the database file, schema and integrity. A missing
// file is reported through DatabaseExists rather than as an error.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	steps := []struct {
		name string
		run  func(context.Context, *DatabaseHealth) error
	}{
		{"ping queue database", s.probeReadable},
		{"read schema version", s.probeSchemaVersion},
		{"inspect tables", s.probeTables},
		{"count queue items", s.probeItemCount},
		{"integrity check", s.probeIntegrity},
	}
	for _, step := range steps {
		if err := step.run(probeCtx, &health); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return health, nil
}

func (s *Store) probeReadable(ctx context.Context, health *DatabaseHealth) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	health.DatabaseReadable = true
	return nil
}

func (s *Store) probeSchemaVersion(ctx context.Context, health *DatabaseHealth) error {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		health.SchemaVersion = "unknown"
		return nil
	}
	health.SchemaVersion = strconv.Itoa(version)
	if version != schemaVersion {
		health.SchemaVersion += " (expected " + strconv.Itoa(schemaVersion) + ")"
	}
	return nil
}

func (s *Store) probeTables(ctx context.Context, health *DatabaseHealth) error {
	tables, err := s.tableNames(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(tables, "queue_items") {
		return nil
	}
	health.TableExists = true

	present, err := s.columnNames(ctx, "queue_items")
	if err != nil {
		return err
	}
	health.ColumnsPresent = present
	for _, col := range strings.Split(itemColumns, ", ") {
		if !slices.Contains(present, col) {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}
	for _, table := range auxiliaryTables {
		if !slices.Contains(tables, table) {
			health.MissingColumns = append(health.MissingColumns, table+" (table)")
		}
	}
	return nil
}

func (s *Store) probeItemCount(ctx context.Context, health *DatabaseHealth) error {
	if !health.TableExists {
		return nil
	}
	return s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue_items").Scan(&health.TotalItems)
}

func (s *Store) probeIntegrity(ctx context.Context, health *DatabaseHealth) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	health.IntegrityCheck = strings.EqualFold(result, "ok")
	return nil
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
}

// columnNames uses the pragma table-valued function so only the name column
// needs scanning.
func (s *Store) columnNames(ctx context.Context, table string) ([]string, error) {
	return s.stringColumn(ctx, "SELECT name FROM pragma_table_info(?)", table)
}

func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}
