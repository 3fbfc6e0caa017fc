package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *DB) LoadActiveEntry(ctx context.Context) (*ActiveEntry, error) {
	a := &ActiveEntry{}
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, task_name, start_time FROM active_entry WHERE slot = 1`,
	).Scan(&a.TaskID, &a.TaskName, &a.StartTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active entry: %w", err)
	}
	if a.TaskID == "" || a.StartTime <= 0 {
		s.logger.Warn("ignoring malformed active entry", "task", a.TaskID, "start", a.StartTime)
		return nil, nil
	}
	return a, nil
}

// SaveActiveEntry stores a, or clears the slot when a is nil.
func (s *DB) SaveActiveEntry(ctx context.Context, a *ActiveEntry) error {
	if a == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM active_entry`); err != nil {
			return fmt.Errorf("clear active entry: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_entry (slot, task_id, task_name, start_time) VALUES (1, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET task_id = excluded.task_id, task_name = excluded.task_name, start_time = excluded.start_time`,
		a.TaskID, a.TaskName, a.StartTime,
	)
	if err != nil {
		return fmt.Errorf("save active entry: %w", err)
	}
	return nil
}

// ClearAll removes tasks, history and the active entry. Settings survive.
func (s *DB) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "history_events", "active_entry"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
