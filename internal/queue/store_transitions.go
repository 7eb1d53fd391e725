package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// rollbackCase builds a CASE expression that moves each processing status
// back to the ready status of its stage.
func rollbackCase() (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(steps)*2)
	b.WriteString("CASE status")
	for _, step := range steps {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, string(step.Processing), string(step.Ready))
	}
	b.WriteString(" ELSE status END")
	return b.String(), args
}

func processingList() []Status {
	out := make([]Status, 0, len(steps))
	for _, step := range steps {
		out = append(out, step.Processing)
	}
	return out
}

// ResetStuckProcessing returns every item left in a processing status to the
// start of its current stage. The daemon calls it on startup.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseExpr, args := rollbackCase()
	processing := processingList()
	args = append(args, formatTime(time.Now()))
	args = append(args, statusArgs(processing)...)
	res, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET status = `+caseExpr+`,
             progress_message = 'Reset from stuck processing',
             progress_percent = 0, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(processing))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	if _, err := s.exec(ctx, `UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`, now, now, id); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items whose heartbeat is older than cutoff to
// the start of their current stage. With no statuses every processing status
// is considered.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = processingList()
	}
	caseExpr, args := rollbackCase()
	args = append(args, formatTime(time.Now()))
	args = append(args, statusArgs(statuses)...)
	args = append(args, formatTime(cutoff))
	res, err := s.exec(
		ctx,
		`UPDATE queue_items
        SET status = `+caseExpr+`,
            progress_message = 'Reclaimed from stale processing',
            progress_percent = 0, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(statuses))+`)
          AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to the ready status of the stage they
// failed in, or to pending when that stage is unknown. With no ids every
// failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	var (
		items []*Item
		err   error
	)
	if len(ids) == 0 {
		items, err = s.List(ctx, StatusFailed)
	} else {
		items, err = s.itemsByID(ctx, ids)
	}
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}

	var retried int64
	for _, item := range items {
		if item.Status != StatusFailed {
			continue
		}
		target := StatusPending
		if step, ok := StepForStage(item.ProgressStage); ok {
			target = step.Ready
		}
		item.Status = target
		item.ErrorMessage = ""
		item.ProgressPercent = 0
		item.ProgressMessage = "Retry requested"
		item.LastHeartbeat = nil
		if err := s.UpdateState(ctx, item); err != nil {
			return retried, fmt.Errorf("retry item %d: %w", item.ID, err)
		}
		retried++
	}
	return retried, nil
}

func (s *Store) itemsByID(ctx context.Context, ids []int64) ([]*Item, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE id IN (`+makePlaceholders(len(ids))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}
