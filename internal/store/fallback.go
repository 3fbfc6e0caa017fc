package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Backend is the set of operations every storage implementation provides.
type Backend interface {
	LoadTasks(ctx context.Context) ([]Task, error)
	SaveTasks(ctx context.Context, tasks []Task) error
	LoadHistory(ctx context.Context) ([]HistoryEvent, error)
	SaveHistory(ctx context.Context, events []HistoryEvent) error
	LoadActiveEntry(ctx context.Context) (*ActiveEntry, error)
	SaveActiveEntry(ctx context.Context, a *ActiveEntry) error
	LoadTimerSettings(ctx context.Context) (TimerSettings, error)
	SaveTimerSettings(ctx context.Context, ts TimerSettings) error
	ClearAll(ctx context.Context) error
	Close() error
}

// Fallback serves from Primary until an operation on it fails, then
// switches to Secondary for good and retries the operation there. On the
// switch every collection still readable from Primary is copied over first.
type Fallback struct {
	primary   Backend
	secondary Backend
	logger    *log.Logger

	// opMu serializes operations so nothing lands on Secondary mid-copy.
	opMu sync.Mutex

	mu       sync.Mutex
	degraded bool
}

func NewFallback(primary, secondary Backend, opts ...Option) *Fallback {
	o := applyOptions(opts)
	return &Fallback{primary: primary, secondary: secondary, logger: o.logger}
}

// Degraded reports whether the primary backend has been abandoned.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return fmt.Sprintf("%v (fallback from %v)", f.secondary, f.primary)
	}
	return fmt.Sprint(f.primary)
}

func (f *Fallback) current() (Backend, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return f.secondary, true
	}
	return f.primary, false
}

func (f *Fallback) do(ctx context.Context, op string, fn func(Backend) error) error {
	f.opMu.Lock()
	defer f.opMu.Unlock()

	b, degraded := f.current()
	err := fn(b)
	if err == nil || degraded {
		return err
	}

	f.logger.Warn("primary storage failed, switching to fallback", "op", op, "err", err)
	f.copyToSecondary(ctx)
	f.mu.Lock()
	f.degraded = true
	f.mu.Unlock()

	if err2 := fn(f.secondary); err2 != nil {
		return fmt.Errorf("%s on fallback storage: %w", op, err2)
	}
	return nil
}

// copyToSecondary carries over whatever Primary can still read. A
// collection that fails to read is left as it is on Secondary.
func (f *Fallback) copyToSecondary(ctx context.Context) {
	steps := []struct {
		name string
		copy func() error
	}{
		{"tasks", func() error {
			tasks, err := f.primary.LoadTasks(ctx)
			if err != nil {
				return err
			}
			return f.secondary.SaveTasks(ctx, tasks)
		}},
		{"history", func() error {
			events, err := f.primary.LoadHistory(ctx)
			if err != nil {
				return err
			}
			return f.secondary.SaveHistory(ctx, events)
		}},
		{"active entry", func() error {
			a, err := f.primary.LoadActiveEntry(ctx)
			if err != nil {
				return err
			}
			return f.secondary.SaveActiveEntry(ctx, a)
		}},
		{"timer settings", func() error {
			ts, err := f.primary.LoadTimerSettings(ctx)
			if err != nil {
				return err
			}
			return f.secondary.SaveTimerSettings(ctx, ts)
		}},
	}
	for _, st := range steps {
		if err := st.copy(); err != nil {
			f.logger.Warn("could not carry over to fallback storage", "collection", st.name, "err", err)
		}
	}
}

func (f *Fallback) LoadTasks(ctx context.Context) (tasks []Task, err error) {
	err = f.do(ctx, "load tasks", func(b Backend) (err error) {
		tasks, err = b.LoadTasks(ctx)
		return err
	})
	return tasks, err
}

func (f *Fallback) SaveTasks(ctx context.Context, tasks []Task) error {
	return f.do(ctx, "save tasks", func(b Backend) error { return b.SaveTasks(ctx, tasks) })
}

func (f *Fallback) LoadHistory(ctx context.Context) (events []HistoryEvent, err error) {
	err = f.do(ctx, "load history", func(b Backend) (err error) {
		events, err = b.LoadHistory(ctx)
		return err
	})
	return events, err
}

func (f *Fallback) SaveHistory(ctx context.Context, events []HistoryEvent) error {
	return f.do(ctx, "save history", func(b Backend) error { return b.SaveHistory(ctx, events) })
}

func (f *Fallback) LoadActiveEntry(ctx context.Context) (a *ActiveEntry, err error) {
	err = f.do(ctx, "load active entry", func(b Backend) (err error) {
		a, err = b.LoadActiveEntry(ctx)
		return err
	})
	return a, err
}

func (f *Fallback) SaveActiveEntry(ctx context.Context, a *ActiveEntry) error {
	return f.do(ctx, "save active entry", func(b Backend) error { return b.SaveActiveEntry(ctx, a) })
}

func (f *Fallback) LoadTimerSettings(ctx context.Context) (ts TimerSettings, err error) {
	err = f.do(ctx, "load timer settings", func(b Backend) (err error) {
		ts, err = b.LoadTimerSettings(ctx)
		return err
	})
	return ts, err
}

func (f *Fallback) SaveTimerSettings(ctx context.Context, ts TimerSettings) error {
	return f.do(ctx, "save timer settings", func(b Backend) error { return b.SaveTimerSettings(ctx, ts) })
}

func (f *Fallback) ClearAll(ctx context.Context) error {
	return f.do(ctx, "clear all", func(b Backend) error { return b.ClearAll(ctx) })
}

func (f *Fallback) Close() error {
	err1 := f.primary.Close()
	err2 := f.secondary.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

var (
	_ Backend = (*DB)(nil)
	_ Backend = (*Dir)(nil)
	_ Backend = (*Fallback)(nil)
)
