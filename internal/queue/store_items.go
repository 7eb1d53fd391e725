package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewVOD inserts a job for a VOD URL. Manual jobs start in StatusManual and
// are never picked up by the workflow; automatic jobs start pending and need
// a URL to ingest.
func (s *Store) NewVOD(ctx context.Context, vodURL string, mode Mode) (*Item, error) {
	vodURL = strings.TrimSpace(vodURL)
	status := StatusPending
	switch mode {
	case ModeManual:
		status = StatusManual
	case ModeAuto:
		if vodURL == "" {
			return nil, errors.New("vod url is required for automatic mode")
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	timestamp := formatTime(time.Now())
	res, err := s.exec(
		ctx,
		`INSERT INTO queue_items (
            vod_url, mode, status, segment_index, progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		nullableString(vodURL),
		string(mode),
		string(status),
		nullableString(s.defaultSegmentIndex),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert vod: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. A missing item yields nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if _, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET vod_url = ?, vod_id = ?, mode = ?, status = ?, segment_index = ?,
             selected_segment_id = ?, polished_path = ?, clips_json = ?, error_message = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(item.VODURL),
		nullableString(item.VODID),
		string(item.Mode),
		string(item.Status),
		nullableString(item.SegmentIndex),
		nullableString(item.SelectedSegmentID),
		nullableString(item.PolishedPath),
		nullableString(item.ClipsJSON),
		nullableString(item.ErrorMessage),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		formatTime(item.UpdatedAt),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// SetVODURL points the job at a new URL. Everything derived from the old URL
// is cleared so the VOD id is re-resolved; stage runs and status are kept.
func (s *Store) SetVODURL(ctx context.Context, item *Item, vodURL string) error {
	if item == nil {
		return errors.New("item is nil")
	}
	vodURL = strings.TrimSpace(vodURL)
	now := time.Now().UTC()
	if _, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET vod_url = ?, vod_id = NULL, polished_path = NULL, clips_json = NULL,
             selected_segment_id = NULL, updated_at = ?
         WHERE id = ?`,
		nullableString(vodURL),
		formatTime(now),
		item.ID,
	); err != nil {
		return fmt.Errorf("set vod url: %w", err)
	}
	item.VODURL = vodURL
	item.VODID = ""
	item.PolishedPath = ""
	item.ClipsJSON = ""
	item.SelectedSegmentID = ""
	item.UpdatedAt = now
	return nil
}

// ItemPatch names the URL-derived columns a stage or panel action changes.
// Nil fields are left as stored.
type ItemPatch struct {
	VODID             *string
	SegmentIndex      *string
	SelectedSegmentID *string
	PolishedPath      *string
	ClipsJSON         *string
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.VODID == nil && p.SegmentIndex == nil && p.SelectedSegmentID == nil &&
		p.PolishedPath == nil && p.ClipsJSON == nil
}

// DerivedChanges returns the derived columns that differ between before and after.
func DerivedChanges(before, after *Item) ItemPatch {
	var p ItemPatch
	changed := func(old, cur string) *string {
		if old == cur {
			return nil
		}
		return &cur
	}
	p.VODID = changed(before.VODID, after.VODID)
	p.SegmentIndex = changed(before.SegmentIndex, after.SegmentIndex)
	p.SelectedSegmentID = changed(before.SelectedSegmentID, after.SelectedSegmentID)
	p.PolishedPath = changed(before.PolishedPath, after.PolishedPath)
	p.ClipsJSON = changed(before.ClipsJSON, after.ClipsJSON)
	return p
}

// Patch writes only the fields set in p, and only while the stored vod_url
// still equals vodURL. It reports false when the row is gone or its URL has
// moved on, in which case nothing is written.
func (s *Store) Patch(ctx context.Context, id int64, vodURL string, p ItemPatch) (bool, error) {
	if p.Empty() {
		return true, nil
	}
	var (
		sets []string
		args []any
	)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, nullableString(*value))
	}
	add("vod_id", p.VODID)
	add("segment_index", p.SegmentIndex)
	add("selected_segment_id", p.SelectedSegmentID)
	add("polished_path", p.PolishedPath)
	add("clips_json", p.ClipsJSON)
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id, strings.TrimSpace(vodURL))

	res, err := s.exec(ctx,
		`UPDATE queue_items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND IFNULL(vod_url, '') = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("patch item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateState persists the workflow-owned columns of item: status, error,
// progress and heartbeat. Other columns are left as stored.
func (s *Store) UpdateState(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if _, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET status = ?, error_message = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		string(item.Status),
		nullableString(item.ErrorMessage),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		formatTime(item.UpdatedAt),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item state: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, statusArgs(statuses)...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return scanItems(rows)
}

// NextForStatuses returns the oldest automatic item matching any of the
// provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := append([]any{string(ModeAuto)}, statusArgs(statuses)...)
	query := `SELECT ` + itemColumns + ` FROM queue_items
        WHERE mode = ? AND status IN (` + makePlaceholders(len(statuses)) + `)
        ORDER BY created_at, id LIMIT 1`
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next item: %w", err)
	}
	return item, nil
}

// Remove deletes an item and its stage runs.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearWhere(ctx, "clear completed", `DELETE FROM queue_items WHERE status = ?`, string(StatusCompleted))
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearWhere(ctx, "clear failed", `DELETE FROM queue_items WHERE status = ?`, string(StatusFailed))
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.clearWhere(ctx, "clear queue", `DELETE FROM queue_items`)
}

func (s *Store) clearWhere(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}
