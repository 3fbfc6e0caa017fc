package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// DB is the SQLite backend. Each collection lives in its own table and is
// replaced wholesale on save.
type DB struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger sets the logger used to report malformed records.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	return o
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*DB, error) {
	o := applyOptions(opts)

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &DB{db: db, path: dbPath, logger: o.logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(opts ...Option) (*DB, error) {
	return New(":memory:", opts...)
}

func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) String() string {
	return "sqlite:" + s.path
}

func (s *DB) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *DB) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS tasks (
		id        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		position  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history_events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id    TEXT NOT NULL,
		task_name  TEXT NOT NULL DEFAULT '',
		type       TEXT NOT NULL,
		timestamp  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history_events(timestamp);

	CREATE TABLE IF NOT EXISTS active_entry (
		slot        INTEGER PRIMARY KEY CHECK (slot = 1),
		task_id     TEXT NOT NULL,
		task_name   TEXT NOT NULL DEFAULT '',
		start_time  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}
