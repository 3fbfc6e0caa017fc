// Package tracker owns the canonical activity state: the task registry,
// the append-only history log, the single active entry, and the timer
// policy that reminds about or stops long-running entries.
package tracker

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sadopc/tempo/internal/store"
)

// Storage persists the four named collections.
type Storage interface {
	LoadTasks(ctx context.Context) ([]store.Task, error)
	SaveTasks(ctx context.Context, tasks []store.Task) error
	LoadHistory(ctx context.Context) ([]store.HistoryEvent, error)
	SaveHistory(ctx context.Context, events []store.HistoryEvent) error
	LoadActiveEntry(ctx context.Context) (*store.ActiveEntry, error)
	SaveActiveEntry(ctx context.Context, a *store.ActiveEntry) error
	LoadTimerSettings(ctx context.Context) (store.TimerSettings, error)
	SaveTimerSettings(ctx context.Context, ts store.TimerSettings) error
	ClearAll(ctx context.Context) error
}

// Tracker serialises every mutation behind one mutex, so a user action and
// a firing timer never interleave.
type Tracker struct {
	mu sync.Mutex

	clock    Clock
	logger   *log.Logger
	notifier Notifier
	w        *writer
	closed   bool

	tasks    []store.Task
	history  []store.HistoryEvent
	active   *store.ActiveEntry
	settings store.TimerSettings

	policy policyState

	obsMu     sync.RWMutex
	observers []func(Change)
}

type Option func(*Tracker)

func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// New loads state from storage and arms the timer policy. An active entry
// that is already past its timeout is stopped at its deadline.
func New(ctx context.Context, s Storage, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		clock:  realClock{},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	if t.tasks, err = s.LoadTasks(ctx); err != nil {
		return nil, &StorageError{Op: "load tasks", Err: err}
	}
	if t.history, err = s.LoadHistory(ctx); err != nil {
		return nil, &StorageError{Op: "load history", Err: err}
	}
	if t.active, err = s.LoadActiveEntry(ctx); err != nil {
		return nil, &StorageError{Op: "load active entry", Err: err}
	}
	if t.settings, err = s.LoadTimerSettings(ctx); err != nil {
		return nil, &StorageError{Op: "load timer settings", Err: err}
	}

	t.w = newWriter(s, t.logger)

	t.logger.Info("state loaded",
		"tasks", len(t.tasks), "events", len(t.history), "active", t.active != nil)

	t.mu.Lock()
	fx := &effects{}
	t.armLocked(fx, t.clock.Now(), normalCatchUp)
	t.commitLocked(fx)
	t.mu.Unlock()
	t.dispatch(fx)

	return t, nil
}

// effects collects what a mutation must do once the lock is released:
// persistence, notifications and observer callbacks.
type effects struct {
	dirty   dirty
	notes   []Notification
	changes []Change
	commit  *Commit
}

func (fx *effects) mark(d dirty) { fx.dirty |= d }

func (fx *effects) notify(n Notification) { fx.notes = append(fx.notes, n) }

func (fx *effects) changed(c Change) { fx.changes = append(fx.changes, c) }

// commitLocked hands a copy of every dirty collection to the writer. It
// runs under t.mu so jobs reach the writer in mutation order.
func (t *Tracker) commitLocked(fx *effects) *Commit {
	if fx.dirty == 0 {
		fx.commit = doneCommit(nil)
		return fx.commit
	}
	if t.closed {
		fx.commit = doneCommit(ErrClosed)
		return fx.commit
	}
	j := job{dirty: fx.dirty, commit: newCommit()}
	if fx.dirty&dirtyTasks != 0 {
		j.tasks = append([]store.Task(nil), t.tasks...)
	}
	if fx.dirty&dirtyHistory != 0 {
		j.history = append([]store.HistoryEvent(nil), t.history...)
	}
	if fx.dirty&dirtyActive != 0 && t.active != nil {
		a := *t.active
		j.active = &a
	}
	if fx.dirty&dirtySettings != 0 {
		j.settings = t.settings
	}
	t.w.submit(j)
	fx.commit = j.commit
	return fx.commit
}

// dispatch delivers notifications and observer callbacks. Never call it
// with t.mu held.
func (t *Tracker) dispatch(fx *effects) {
	if t.notifier != nil {
		for _, n := range fx.notes {
			t.notifier.Notify(n)
		}
	}
	if len(fx.changes) == 0 {
		return
	}
	t.obsMu.RLock()
	obs := slices.Clone(t.observers)
	t.obsMu.RUnlock()
	for _, c := range fx.changes {
		for _, fn := range obs {
			fn(c)
		}
	}
}

// OnChange registers fn to be called after every state transition,
// including automatic timeouts.
func (t *Tracker) OnChange(fn func(Change)) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, fn)
}

// Flush waits until every write queued so far has landed.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	c := newCommit()
	t.w.submit(job{commit: c})
	t.mu.Unlock()
	return c.Wait(ctx)
}

// Close cancels pending timers and drains queued writes.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.disarmLocked()
	t.mu.Unlock()

	t.w.close()
	return nil
}

// Snapshot is a consistent copy of the tracker state.
type Snapshot struct {
	Tasks    []store.Task
	History  []store.HistoryEvent
	Active   *store.ActiveEntry
	Settings store.TimerSettings
	Now      time.Time
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Tasks:    append([]store.Task(nil), t.tasks...),
		History:  append([]store.HistoryEvent(nil), t.history...),
		Active:   t.activeCopyLocked(),
		Settings: t.settings,
		Now:      t.clock.Now(),
	}
}

func (t *Tracker) History() []store.HistoryEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]store.HistoryEvent(nil), t.history...)
}

// ActiveEntry returns a copy of the active entry, or nil when idle.
func (t *Tracker) ActiveEntry() *store.ActiveEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeCopyLocked()
}

func (t *Tracker) TimerSettings() store.TimerSettings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

func (t *Tracker) Now() time.Time { return t.clock.Now() }

func (t *Tracker) activeCopyLocked() *store.ActiveEntry {
	if t.active == nil {
		return nil
	}
	a := *t.active
	return &a
}
