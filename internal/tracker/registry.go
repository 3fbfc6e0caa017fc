package tracker

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sadopc/tempo/internal/store"
)

// AddTask registers a new task with a fresh id.
func (t *Tracker) AddTask(name string) (store.Task, *Commit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Task{}, nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	t.mu.Lock()
	task := store.Task{ID: uuid.NewString(), Name: name}
	t.tasks = append(t.tasks, task)
	fx := &effects{}
	fx.mark(dirtyTasks)
	fx.changed(Change{Kind: ChangeTasks})
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.logger.Debug("task added", "id", task.ID, "name", task.Name)
	t.dispatch(fx)
	return task, c, nil
}

// RenameTask changes a task's display name. Events already in the history
// keep the name they were recorded with; a running entry keeps its name
// until it is stopped.
func (t *Tracker) RenameTask(id, name string) (*Commit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	t.mu.Lock()
	i := t.indexLocked(id)
	if i < 0 {
		t.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	t.tasks[i].Name = name
	fx := &effects{}
	fx.mark(dirtyTasks)
	fx.changed(Change{Kind: ChangeTasks})
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.dispatch(fx)
	return c, nil
}

// DeleteTask removes a task from the registry. If it is the active entry
// it is stopped first. Its history stays.
func (t *Tracker) DeleteTask(id string) (*Commit, error) {
	t.mu.Lock()
	i := t.indexLocked(id)
	if i < 0 {
		t.mu.Unlock()
		return nil, ErrTaskNotFound
	}

	fx := &effects{}
	if t.active != nil && t.active.TaskID == id {
		t.stopLocked(fx, t.clock.Now(), ChangeStopped)
	}
	t.tasks = append(t.tasks[:i:i], t.tasks[i+1:]...)
	fx.mark(dirtyTasks)
	fx.changed(Change{Kind: ChangeTasks})
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.logger.Debug("task deleted", "id", id)
	t.dispatch(fx)
	return c, nil
}

// Tasks returns the registry in insertion order.
func (t *Tracker) Tasks() []store.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]store.Task(nil), t.tasks...)
}

func (t *Tracker) Task(id string) (store.Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexLocked(id); i >= 0 {
		return t.tasks[i], true
	}
	return store.Task{}, false
}

func (t *Tracker) indexLocked(id string) int {
	for i, task := range t.tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}
