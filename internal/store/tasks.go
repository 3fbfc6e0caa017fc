package store

import (
	"context"
	"fmt"
)

func (s *DB) LoadTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tasks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		if t.ID == "" || t.Name == "" {
			s.logger.Warn("skipping malformed task row", "id", t.ID)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *DB) SaveTasks(ctx context.Context, tasks []Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tasks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for i, t := range tasks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, name, position) VALUES (?, ?, ?)`,
			t.ID, t.Name, i,
		); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}
