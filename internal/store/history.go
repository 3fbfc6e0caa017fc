package store

import (
	"context"
	"fmt"
)

// LoadHistory returns events in the order they were appended. Rows with an
// unknown event type are skipped.
func (s *DB) LoadHistory(ctx context.Context) ([]HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, task_name, type, timestamp FROM history_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var events []HistoryEvent
	for rows.Next() {
		var e HistoryEvent
		var typ string
		if err := rows.Scan(&e.TaskID, &e.TaskName, &typ, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		if !e.Type.Valid() {
			s.logger.Warn("skipping history event with unknown type", "type", typ, "task", e.TaskID)
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *DB) SaveHistory(ctx context.Context, events []HistoryEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_events`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO history_events (task_id, task_name, type, timestamp) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.TaskID, e.TaskName, string(e.Type), e.Timestamp); err != nil {
			return fmt.Errorf("insert history event: %w", err)
		}
	}
	return tx.Commit()
}
