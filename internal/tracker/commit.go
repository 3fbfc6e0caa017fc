package tracker

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/sadopc/tempo/internal/store"
)

// Commit is the durable half of a mutation. The in-memory transition is
// already visible when a Commit is returned; Wait blocks until the write
// reaches storage.
type Commit struct {
	done chan struct{}
	err  error
}

func newCommit() *Commit {
	return &Commit{done: make(chan struct{})}
}

func doneCommit(err error) *Commit {
	c := newCommit()
	c.finish(err)
	return c
}

func (c *Commit) finish(err error) {
	c.err = err
	close(c.done)
}

// Done is closed once the write has completed or failed.
func (c *Commit) Done() <-chan struct{} { return c.done }

// Err returns the write error after Done is closed.
func (c *Commit) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the write completes. A failed write returns a
// *StorageError.
func (c *Commit) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type dirty uint8

const (
	dirtyTasks dirty = 1 << iota
	dirtyHistory
	dirtyActive
	dirtySettings
	clearAll
)

type job struct {
	dirty    dirty
	tasks    []store.Task
	history  []store.HistoryEvent
	active   *store.ActiveEntry
	settings store.TimerSettings
	commit   *Commit
}

// writer applies jobs to storage one at a time in submission order.
type writer struct {
	storage Storage
	logger  *log.Logger
	jobs    chan job
	wg      sync.WaitGroup
}

func newWriter(s Storage, logger *log.Logger) *writer {
	w := &writer{
		storage: s,
		logger:  logger,
		jobs:    make(chan job, 64),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *writer) run() {
	defer w.wg.Done()
	for j := range w.jobs {
		err := w.apply(j)
		if err != nil {
			w.logger.Error("persist failed", "err", err)
		}
		j.commit.finish(err)
	}
}

func (w *writer) apply(j job) error {
	ctx := context.Background()

	if j.dirty&clearAll != 0 {
		if err := w.storage.ClearAll(ctx); err != nil {
			return &StorageError{Op: "clear all", Err: err}
		}
	}
	if j.dirty&dirtyHistory != 0 {
		if err := w.storage.SaveHistory(ctx, j.history); err != nil {
			return &StorageError{Op: "save history", Err: err}
		}
	}
	if j.dirty&dirtyActive != 0 {
		if err := w.storage.SaveActiveEntry(ctx, j.active); err != nil {
			return &StorageError{Op: "save active entry", Err: err}
		}
	}
	if j.dirty&dirtyTasks != 0 {
		if err := w.storage.SaveTasks(ctx, j.tasks); err != nil {
			return &StorageError{Op: "save tasks", Err: err}
		}
	}
	if j.dirty&dirtySettings != 0 {
		if err := w.storage.SaveTimerSettings(ctx, j.settings); err != nil {
			return &StorageError{Op: "save timer settings", Err: err}
		}
	}
	return nil
}

func (w *writer) submit(j job) {
	w.jobs <- j
}

// close stops accepting jobs and waits for queued ones to finish.
func (w *writer) close() {
	close(w.jobs)
	w.wg.Wait()
}
