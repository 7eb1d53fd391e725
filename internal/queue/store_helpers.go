package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const itemColumns = "id, vod_url, vod_id, mode, status, segment_index, selected_segment_id, polished_path, clips_json, error_message, progress_stage, progress_percent, progress_message, last_heartbeat, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item            Item
		vodURL          sql.NullString
		vodID           sql.NullString
		mode            string
		status          string
		segmentIndex    sql.NullString
		selectedSegment sql.NullString
		polishedPath    sql.NullString
		clipsJSON       sql.NullString
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		heartbeatRaw    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&vodURL,
		&vodID,
		&mode,
		&status,
		&segmentIndex,
		&selectedSegment,
		&polishedPath,
		&clipsJSON,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item.VODURL = vodURL.String
	item.VODID = vodID.String
	item.Mode = Mode(mode)
	item.Status = Status(status)
	item.SegmentIndex = segmentIndex.String
	item.SelectedSegmentID = selectedSegment.String
	item.PolishedPath = polishedPath.String
	item.ClipsJSON = clipsJSON.String
	item.ErrorMessage = errorMessage.String
	item.ProgressStage = progressStage.String
	item.ProgressPercent = progressPercent.Float64
	item.ProgressMessage = progressMessage.String
	item.LastHeartbeat = parseNullableTime(heartbeatRaw)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

// timestampLayout keeps a fixed fraction width so stored times sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	parsed, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}
