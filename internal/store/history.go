package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/hcbridge/internal/entity"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryEntry is one recorded entity state.
type HistoryEntry struct {
	ID         int64          `json:"id"`
	DeviceID   string         `json:"device_id"`
	Key        string         `json:"key"`
	Available  bool           `json:"available"`
	Value      any            `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// RecordState inserts a history row for one entity state.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - st: Snapshot to persist; DeviceID and Key are required
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *Store) RecordState(ctx context.Context, st entity.State) error {
	if st.DeviceID == "" || st.Key == "" {
		return fmt.Errorf("%w: device id and key are required", ErrInvalidAppliance)
	}

	value, err := json.Marshal(st.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}
	var attrs []byte
	if len(st.Attributes) > 0 {
		if attrs, err = json.Marshal(st.Attributes); err != nil {
			return fmt.Errorf("marshalling attributes: %w", err)
		}
	}

	at := st.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entity_state_history (appliance_id, entity_key, available, value, attributes, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.DeviceID, st.Key, boolToInt(st.Available), string(value), nullString(attrs),
		at.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns recent states of one entity, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Appliance device ID
//   - key: Entity key
//   - limit: Maximum entries to return (default 50, max 500)
func (s *Store) GetHistory(ctx context.Context, deviceID, key string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, appliance_id, entity_key, available, value, attributes, recorded_at
		 FROM entity_state_history
		 WHERE appliance_id = ? AND entity_key = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID, key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		var available int
		var value, attrs sql.NullString
		var recorded string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Key, &available, &value, &attrs, &recorded); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		e.Available = available != 0
		if value.Valid {
			if err := json.Unmarshal([]byte(value.String), &e.Value); err != nil {
				return nil, fmt.Errorf("unmarshalling value: %w", err)
			}
		}
		if attrs.Valid {
			if err := json.Unmarshal([]byte(attrs.String), &e.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshalling attributes: %w", err)
			}
		}
		if e.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes history rows older than olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeFormat)
	result, err := s.db.ExecContext(ctx, "DELETE FROM entity_state_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
