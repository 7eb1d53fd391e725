package queue

import (
	"context"
	"fmt"
	"time"
)

const maxStoredEvents = 1000

// AppendEvent records an event received from the backend socket and trims the
// table to the newest entries.
func (s *Store) AppendEvent(ctx context.Context, name, payload string, receivedAt time.Time) (int64, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	res, err := s.exec(ctx,
		`INSERT INTO backend_events (name, payload, received_at) VALUES (?, ?, ?)`,
		name, nullableString(payload), formatTime(receivedAt))
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM backend_events WHERE id <= ?`, id-maxStoredEvents); err != nil {
		return id, fmt.Errorf("trim events: %w", err)
	}
	return id, nil
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]BackendEvent, error) {
	if limit <= 0 {
		limit = maxStoredEvents
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, payload, received_at FROM
            (SELECT id, name, payload, received_at FROM backend_events ORDER BY id DESC LIMIT ?)
         ORDER BY id`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []BackendEvent
	for rows.Next() {
		var (
			evt      BackendEvent
			payload  []byte
			received string
		)
		if err := rows.Scan(&evt.ID, &evt.Name, &payload, &received); err != nil {
			return nil, err
		}
		evt.Payload = string(payload)
		if ts, err := parseTimeString(received); err == nil {
			evt.ReceivedAt = ts
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
