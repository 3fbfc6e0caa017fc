package tracker

import (
	"time"

	"github.com/sadopc/tempo/internal/store"
)

// Transition describes the outcome of a start request.
type Transition struct {
	// Changed is false when the requested entry was already active.
	Changed bool
	// Previous is the entry implicitly stopped by the start, if any.
	Previous *Stopped
	Entry    store.ActiveEntry
}

// Stopped is the result of ending an entry.
type Stopped struct {
	Entry    store.ActiveEntry
	At       time.Time
	Duration time.Duration
}

// StartTask makes taskID the active entry. Any other running entry is
// stopped first, and both events are persisted in one write. Starting the
// entry that is already active is a no-op.
func (t *Tracker) StartTask(taskID string) (Transition, *Commit, error) {
	if taskID == store.RestID {
		return t.StartRest()
	}

	t.mu.Lock()
	i := t.indexLocked(taskID)
	if i < 0 {
		t.mu.Unlock()
		return Transition{}, nil, ErrTaskNotFound
	}
	fx := &effects{}
	tr := t.startLocked(fx, t.tasks[i].ID, t.tasks[i].Name)
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.dispatch(fx)
	return tr, c, nil
}

// StartRest begins a rest period. Rest is exempt from reminders and
// timeouts.
func (t *Tracker) StartRest() (Transition, *Commit, error) {
	t.mu.Lock()
	fx := &effects{}
	tr := t.startLocked(fx, store.RestID, store.RestName)
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.dispatch(fx)
	return tr, c, nil
}

func (t *Tracker) startLocked(fx *effects, id, name string) Transition {
	if t.active != nil && t.active.TaskID == id {
		return Transition{Entry: *t.active}
	}

	now := t.clock.Now()
	tr := Transition{Changed: true}
	if t.active != nil {
		prev := t.stopLocked(fx, now, ChangeStopped)
		tr.Previous = &prev
	}

	e := store.ActiveEntry{TaskID: id, TaskName: name, StartTime: now.UnixMilli()}
	t.history = append(t.history, store.HistoryEvent{
		TaskID:    id,
		TaskName:  name,
		Type:      store.StartType(id),
		Timestamp: e.StartTime,
	})
	t.active = &e
	tr.Entry = e

	fx.mark(dirtyHistory | dirtyActive)
	fx.changed(Change{Kind: ChangeStarted, Entry: e})
	t.logger.Info("entry started", "task", name, "rest", e.IsRest())

	t.armLocked(fx, now, normalCatchUp)
	return tr
}

// StopTask ends the active entry if it belongs to taskID. It reports false
// when nothing is running or a different entry is active.
func (t *Tracker) StopTask(taskID string) (Stopped, bool, *Commit) {
	t.mu.Lock()
	if t.active == nil || t.active.TaskID != taskID {
		t.mu.Unlock()
		return Stopped{}, false, doneCommit(nil)
	}
	fx := &effects{}
	st := t.stopLocked(fx, t.clock.Now(), ChangeStopped)
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.dispatch(fx)
	return st, true, c
}

// StopActive ends whatever entry is running.
func (t *Tracker) StopActive() (Stopped, bool, *Commit) {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		return Stopped{}, false, doneCommit(nil)
	}
	id := t.active.TaskID
	t.mu.Unlock()
	return t.StopTask(id)
}

// stopLocked appends the stop event at the given time and clears the
// active entry. The caller must hold t.mu and know an entry is active.
func (t *Tracker) stopLocked(fx *effects, at time.Time, kind ChangeKind) Stopped {
	e := *t.active
	t.history = append(t.history, store.HistoryEvent{
		TaskID:    e.TaskID,
		TaskName:  e.TaskName,
		Type:      store.StopType(e.TaskID),
		Timestamp: at.UnixMilli(),
	})
	t.active = nil
	t.disarmLocked()

	fx.mark(dirtyHistory | dirtyActive)
	fx.changed(Change{Kind: kind, Entry: e})

	d := at.Sub(e.Start())
	t.logger.Info("entry stopped", "task", e.TaskName, "duration", d.Round(time.Second))
	return Stopped{Entry: e, At: at, Duration: d}
}

// ClearHistory empties the history log. The active entry keeps running.
func (t *Tracker) ClearHistory() *Commit {
	t.mu.Lock()
	t.history = nil
	fx := &effects{}
	fx.mark(dirtyHistory)
	fx.changed(Change{Kind: ChangeHistoryCleared})
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.logger.Info("history cleared")
	t.dispatch(fx)
	return c
}

// ClearAllData stops the active entry and removes all tasks and history.
// Timer settings survive.
func (t *Tracker) ClearAllData() *Commit {
	t.mu.Lock()
	fx := &effects{}
	if t.active != nil {
		t.stopLocked(fx, t.clock.Now(), ChangeStopped)
	}
	t.tasks = nil
	t.history = nil
	t.active = nil
	t.policy.reminded = ""
	fx.dirty = clearAll
	fx.changed(Change{Kind: ChangeAllCleared})
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.logger.Info("all data cleared")
	t.dispatch(fx)
	return c
}
