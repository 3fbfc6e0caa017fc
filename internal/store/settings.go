package store

import (
	"context"
	"fmt"
	"strconv"
)

const (
	keyReminderEnabled = "reminder_enabled"
	keyReminderMinutes = "reminder_minutes"
	keyTimeoutEnabled  = "timeout_enabled"
	keyTimeoutMinutes  = "timeout_minutes"
)

// LoadTimerSettings reads the four timer keys. Missing keys fall back to
// their defaults; unparseable or invalid values reset everything to the
// defaults.
func (s *DB) LoadTimerSettings(ctx context.Context) (TimerSettings, error) {
	ts := DefaultTimerSettings()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return ts, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return ts, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return ts, err
	}

	parsed, err := parseTimerSettings(ts, values)
	if err != nil {
		s.logger.Warn("ignoring malformed timer settings", "err", err)
		return DefaultTimerSettings(), nil
	}
	return parsed, nil
}

func parseTimerSettings(ts TimerSettings, values map[string]string) (TimerSettings, error) {
	var err error
	if v, ok := values[keyReminderEnabled]; ok {
		if ts.ReminderEnabled, err = strconv.ParseBool(v); err != nil {
			return ts, fmt.Errorf("%s: %w", keyReminderEnabled, err)
		}
	}
	if v, ok := values[keyReminderMinutes]; ok {
		if ts.ReminderMinutes, err = strconv.ParseFloat(v, 64); err != nil {
			return ts, fmt.Errorf("%s: %w", keyReminderMinutes, err)
		}
	}
	if v, ok := values[keyTimeoutEnabled]; ok {
		if ts.TimeoutEnabled, err = strconv.ParseBool(v); err != nil {
			return ts, fmt.Errorf("%s: %w", keyTimeoutEnabled, err)
		}
	}
	if v, ok := values[keyTimeoutMinutes]; ok {
		if ts.TimeoutMinutes, err = strconv.ParseFloat(v, 64); err != nil {
			return ts, fmt.Errorf("%s: %w", keyTimeoutMinutes, err)
		}
	}
	return ts, ts.Validate()
}

func (s *DB) SaveTimerSettings(ctx context.Context, ts TimerSettings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save settings: %w", err)
	}
	defer tx.Rollback()

	pairs := [][2]string{
		{keyReminderEnabled, strconv.FormatBool(ts.ReminderEnabled)},
		{keyReminderMinutes, strconv.FormatFloat(ts.ReminderMinutes, 'f', -1, 64)},
		{keyTimeoutEnabled, strconv.FormatBool(ts.TimeoutEnabled)},
		{keyTimeoutMinutes, strconv.FormatFloat(ts.TimeoutMinutes, 'f', -1, 64)},
	}
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			p[0], p[1],
		); err != nil {
			return fmt.Errorf("save setting %q: %w", p[0], err)
		}
	}
	return tx.Commit()
}
