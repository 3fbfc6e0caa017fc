package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	tasksFile    = "tasks.json"
	historyFile  = "history.json"
	activeFile   = "active_entry.json"
	settingsFile = "timer_settings.json"
)

// Dir keeps each collection as a JSON file inside a user-chosen folder.
type Dir struct {
	BaseDir string
	mu      sync.Mutex
	logger  *log.Logger
}

func NewDir(baseDir string, opts ...Option) (*Dir, error) {
	o := applyOptions(opts)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data folder: %w", err)
	}
	return &Dir{BaseDir: baseDir, logger: o.logger}, nil
}

func (d *Dir) Close() error { return nil }

func (d *Dir) String() string { return "folder:" + d.BaseDir }

// readJSON decodes name into v. It returns false when the file is missing
// or malformed; only other read failures are errors.
func (d *Dir) readJSON(name string, v any) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(d.BaseDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		d.logger.Warn("ignoring malformed data file", "file", name, "err", err)
		return false, nil
	}
	return true, nil
}

// writeJSON replaces name atomically via a temp file in the same folder.
func (d *Dir) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tmp, err := os.CreateTemp(d.BaseDir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.BaseDir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (d *Dir) remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(filepath.Join(d.BaseDir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (d *Dir) LoadTasks(_ context.Context) ([]Task, error) {
	var tasks []Task
	if ok, err := d.readJSON(tasksFile, &tasks); !ok {
		return nil, err
	}
	valid := tasks[:0]
	for _, t := range tasks {
		if t.ID == "" || t.Name == "" {
			d.logger.Warn("skipping malformed task", "id", t.ID)
			continue
		}
		valid = append(valid, t)
	}
	return valid, nil
}

func (d *Dir) SaveTasks(_ context.Context, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	return d.writeJSON(tasksFile, tasks)
}

func (d *Dir) LoadHistory(_ context.Context) ([]HistoryEvent, error) {
	var events []HistoryEvent
	if ok, err := d.readJSON(historyFile, &events); !ok {
		return nil, err
	}
	valid := events[:0]
	for _, e := range events {
		if !e.Type.Valid() {
			d.logger.Warn("skipping history event with unknown type", "type", e.Type, "task", e.TaskID)
			continue
		}
		valid = append(valid, e)
	}
	return valid, nil
}

func (d *Dir) SaveHistory(_ context.Context, events []HistoryEvent) error {
	if events == nil {
		events = []HistoryEvent{}
	}
	return d.writeJSON(historyFile, events)
}

func (d *Dir) LoadActiveEntry(_ context.Context) (*ActiveEntry, error) {
	var a *ActiveEntry
	if ok, err := d.readJSON(activeFile, &a); !ok || a == nil {
		return nil, err
	}
	if a.TaskID == "" || a.StartTime <= 0 {
		d.logger.Warn("ignoring malformed active entry", "task", a.TaskID, "start", a.StartTime)
		return nil, nil
	}
	return a, nil
}

// SaveActiveEntry writes a JSON null when a is nil, matching what the
// browser build stored.
func (d *Dir) SaveActiveEntry(_ context.Context, a *ActiveEntry) error {
	return d.writeJSON(activeFile, a)
}

func (d *Dir) LoadTimerSettings(_ context.Context) (TimerSettings, error) {
	ts := DefaultTimerSettings()
	ok, err := d.readJSON(settingsFile, &ts)
	if !ok {
		return DefaultTimerSettings(), err
	}
	if err := ts.Validate(); err != nil {
		d.logger.Warn("ignoring invalid timer settings", "err", err)
		return DefaultTimerSettings(), nil
	}
	return ts, nil
}

func (d *Dir) SaveTimerSettings(_ context.Context, ts TimerSettings) error {
	return d.writeJSON(settingsFile, ts)
}

func (d *Dir) ClearAll(_ context.Context) error {
	for _, name := range []string{tasksFile, historyFile, activeFile} {
		if err := d.remove(name); err != nil {
			return err
		}
	}
	return nil
}
