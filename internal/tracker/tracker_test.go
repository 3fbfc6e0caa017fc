package tracker

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sadopc/tempo/internal/store"
)

// ============================================================
// Helpers
// ============================================================

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)

type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	timers     []*fakeTimer
	ignoreStop bool
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, ft)
	return ft
}

func (ft *fakeTimer) Stop() bool {
	ft.c.mu.Lock()
	defer ft.c.mu.Unlock()
	if ft.c.ignoreStop || ft.fired || ft.stopped {
		return false
	}
	ft.stopped = true
	return true
}

// Advance moves time forward and runs due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, ft := range c.timers {
			if ft.fired || ft.stopped || ft.at.After(target) {
				continue
			}
			if next == nil || ft.at.Before(next.at) {
				next = ft
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// Jump moves wall time without running timers, like a suspended process.
func (c *fakeClock) Jump(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) count(kind NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTracker(t *testing.T, s Storage, clock *fakeClock) (*Tracker, *recorder) {
	t.Helper()
	rec := &recorder{}
	tr, err := New(context.Background(), s, WithClock(clock), WithNotifier(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, rec
}

func mustAdd(t *testing.T, tr *Tracker, name string) store.Task {
	t.Helper()
	task, c, err := tr.AddTask(name)
	if err != nil {
		t.Fatalf("AddTask(%q): %v", name, err)
	}
	wait(t, c)
	return task
}

func mustStart(t *testing.T, tr *Tracker, id string) Transition {
	t.Helper()
	tr2, c, err := tr.StartTask(id)
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	wait(t, c)
	return tr2
}

func wait(t *testing.T, c *Commit) {
	t.Helper()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func lastEvent(t *testing.T, tr *Tracker) store.HistoryEvent {
	t.Helper()
	h := tr.History()
	if len(h) == 0 {
		t.Fatal("history is empty")
	}
	return h[len(h)-1]
}

// ============================================================
// Task registry
// ============================================================

func TestNewEmptyStore(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))

	if len(tr.Tasks()) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tr.Tasks()))
	}
	if tr.ActiveEntry() != nil {
		t.Fatal("expected idle tracker")
	}
	if tr.TimerSettings() != store.DefaultTimerSettings() {
		t.Fatalf("expected default settings, got %+v", tr.TimerSettings())
	}
}

func TestAddTaskRejectsEmptyName(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))

	_, _, err := tr.AddTask("   ")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "name" {
		t.Fatalf("expected field name, got %q", verr.Field)
	}
	if len(tr.Tasks()) != 0 {
		t.Fatal("rejected task must not be added")
	}
}

func TestAddTaskPersistsInOrder(t *testing.T) {
	s := newTestStore(t)
	tr, _ := newTestTracker(t, s, newFakeClock(t0))

	a := mustAdd(t, tr, "  Write report ")
	b := mustAdd(t, tr, "Email")

	if a.Name != "Write report" {
		t.Fatalf("expected trimmed name, got %q", a.Name)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}

	loaded, err := s.LoadTasks(context.Background())
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != a.ID || loaded[1].ID != b.ID {
		t.Fatalf("unexpected stored tasks: %+v", loaded)
	}
}

func TestRenameTaskKeepsHistoryNames(t *testing.T) {
	clock := newFakeClock(t0)
	tr, _ := newTestTracker(t, newTestStore(t), clock)

	task := mustAdd(t, tr, "Old")
	mustStart(t, tr, task.ID)
	clock.Advance(time.Minute)
	tr.StopActive()

	c, err := tr.RenameTask(task.ID, "New")
	if err != nil {
		t.Fatalf("RenameTask: %v", err)
	}
	wait(t, c)

	got, ok := tr.Task(task.ID)
	if !ok || got.Name != "New" {
		t.Fatalf("expected renamed task, got %+v", got)
	}
	for _, e := range tr.History() {
		if e.TaskName != "Old" {
			t.Fatalf("history name changed: %+v", e)
		}
	}

	if _, err := tr.RenameTask("missing", "x"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteWhileActive(t *testing.T) {
	clock := newFakeClock(t0)
	tr, _ := newTestTracker(t, newTestStore(t), clock)

	task := mustAdd(t, tr, "Focus")
	mustStart(t, tr, task.ID)
	clock.Advance(10 * time.Minute)

	c, err := tr.DeleteTask(task.ID)
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	wait(t, c)

	if tr.ActiveEntry() != nil {
		t.Fatal("expected idle after deleting active task")
	}
	if len(tr.Tasks()) != 0 {
		t.Fatal("task not removed")
	}
	h := tr.History()
	if len(h) != 2 {
		t.Fatalf("expected start and stop, got %d events", len(h))
	}
	if h[1].Type != store.EventStop || h[1].TaskName != "Focus" {
		t.Fatalf("unexpected stop event: %+v", h[1])
	}
	if h[1].Timestamp-h[0].Timestamp != (10 * time.Minute).Milliseconds() {
		t.Fatalf("unexpected duration %dms", h[1].Timestamp-h[0].Timestamp)
	}
	if reminder, timeout := tr.Armed(); reminder || timeout {
		t.Fatal("policy still armed after delete")
	}
}

func TestDeleteUnknownTask(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))

	if _, err := tr.DeleteTask("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

// ============================================================
// State machine
// ============================================================

func TestStartUnknownTask(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))

	if _, _, err := tr.StartTask("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if len(tr.History()) != 0 {
		t.Fatal("failed start must not append events")
	}
}

func TestAtMostOneActive(t *testing.T) {
	clock := newFakeClock(t0)
	tr, _ := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	b := mustAdd(t, tr, "B")

	mustStart(t, tr, a.ID)
	clock.Advance(5 * time.Minute)
	res := mustStart(t, tr, b.ID)

	if !res.Changed || res.Previous == nil || res.Previous.Entry.TaskID != a.ID {
		t.Fatalf("expected implicit stop of A, got %+v", res)
	}
	if res.Previous.Duration != 5*time.Minute {
		t.Fatalf("expected 5m, got %v", res.Previous.Duration)
	}

	h := tr.History()
	want := []struct {
		id  string
		typ store.EventType
	}{
		{a.ID, store.EventStart},
		{a.ID, store.EventStop},
		{b.ID, store.EventStart},
	}
	if len(h) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(h))
	}
	for i, w := range want {
		if h[i].TaskID != w.id || h[i].Type != w.typ {
			t.Fatalf("event %d: got %+v", i, h[i])
		}
	}
	if h[1].Timestamp != h[2].Timestamp {
		t.Fatal("implicit stop and new start should share a timestamp")
	}
	if active := tr.ActiveEntry(); active == nil || active.TaskID != b.ID {
		t.Fatalf("expected B active, got %+v", active)
	}
}

func TestIdempotentRestart(t *testing.T) {
	clock := newFakeClock(t0)
	tr, _ := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	clock.Advance(time.Minute)
	res := mustStart(t, tr, a.ID)

	if res.Changed {
		t.Fatal("restarting the active task should not change state")
	}
	if len(tr.History()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(tr.History()))
	}
	if tr.ActiveEntry().StartTime != t0.UnixMilli() {
		t.Fatal("start time should be unchanged")
	}
}

func TestStopTask(t *testing.T) {
	clock := newFakeClock(t0)
	tr, _ := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	b := mustAdd(t, tr, "B")

	if _, ok, _ := tr.StopTask(a.ID); ok {
		t.Fatal("stop while idle should report false")
	}

	mustStart(t, tr, a.ID)
	if _, ok, _ := tr.StopTask(b.ID); ok {
		t.Fatal("stop of a non-active task should report false")
	}

	clock.Advance(5 * time.Second)
	st, ok, c := tr.StopTask(a.ID)
	if !ok {
		t.Fatal("expected stop to succeed")
	}
	wait(t, c)
	if st.Duration != 5*time.Second || st.Entry.TaskName != "A" {
		t.Fatalf("unexpected result: %+v", st)
	}
	if tr.ActiveEntry() != nil {
		t.Fatal("expected idle")
	}
	last := lastEvent(t, tr)
	if last.Type != store.EventStop || last.Timestamp != t0.Add(5*time.Second).UnixMilli() {
		t.Fatalf("unexpected stop event: %+v", last)
	}
}

func TestRestEvents(t *testing.T) {
	clock := newFakeClock(t0)
	tr, _ := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	if _, c, err := tr.StartRest(); err != nil {
		t.Fatalf("StartRest: %v", err)
	} else {
		wait(t, c)
	}
	clock.Advance(time.Minute)
	tr.StopActive()

	h := tr.History()
	types := []store.EventType{store.EventStart, store.EventStop, store.EventStartRest, store.EventStopRest}
	if len(h) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(h))
	}
	for i, typ := range types {
		if h[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, h[i].Type)
		}
	}
	if h[2].TaskID != store.RestID || h[2].TaskName != store.RestName {
		t.Fatalf("unexpected rest event: %+v", h[2])
	}
}

func TestClearHistoryKeepsActive(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	wait(t, tr.ClearHistory())

	if len(tr.History()) != 0 {
		t.Fatal("history not cleared")
	}
	if tr.ActiveEntry() == nil {
		t.Fatal("active entry should survive clear history")
	}
	if len(tr.Tasks()) != 1 {
		t.Fatal("tasks should survive clear history")
	}
}

func TestClearAllDataKeepsSettings(t *testing.T) {
	s := newTestStore(t)
	tr, _ := newTestTracker(t, s, newFakeClock(t0))

	custom := store.TimerSettings{ReminderEnabled: false, ReminderMinutes: 10, TimeoutEnabled: true, TimeoutMinutes: 90}
	c, err := tr.UpdateTimerSettings(custom)
	if err != nil {
		t.Fatalf("UpdateTimerSettings: %v", err)
	}
	wait(t, c)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	wait(t, tr.ClearAllData())

	if len(tr.Tasks()) != 0 || len(tr.History()) != 0 || tr.ActiveEntry() != nil {
		t.Fatal("expected empty state in memory")
	}
	if tr.TimerSettings() != custom {
		t.Fatal("settings should survive clear all")
	}

	ctx := context.Background()
	tasks, _ := s.LoadTasks(ctx)
	history, _ := s.LoadHistory(ctx)
	active, _ := s.LoadActiveEntry(ctx)
	settings, _ := s.LoadTimerSettings(ctx)
	if len(tasks) != 0 || len(history) != 0 || active != nil {
		t.Fatalf("expected empty storage, got %d tasks %d events active=%v", len(tasks), len(history), active)
	}
	if settings != custom {
		t.Fatalf("stored settings lost: %+v", settings)
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	s := newTestStore(t)
	clock := newFakeClock(t0)

	tr, err := New(context.Background(), s, WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	tr.Close()

	clock.Advance(10 * time.Minute)
	tr2, _ := newTestTracker(t, s, clock)

	active := tr2.ActiveEntry()
	if active == nil || active.TaskID != a.ID || active.StartTime != t0.UnixMilli() {
		t.Fatalf("active entry not restored: %+v", active)
	}
	if len(tr2.History()) != 1 || len(tr2.Tasks()) != 1 {
		t.Fatal("history or tasks not restored")
	}
	if _, timeout := tr2.Armed(); !timeout {
		t.Fatal("timeout should be re-armed after restart")
	}
}

// ============================================================
// Timer policy
// ============================================================

func TestTimeoutStopsAtDeadline(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	var mu sync.Mutex
	var kinds []ChangeKind
	tr.OnChange(func(c Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	clock.Advance(61 * time.Minute)

	if tr.ActiveEntry() != nil {
		t.Fatal("expected auto-stop")
	}
	last := lastEvent(t, tr)
	if last.Type != store.EventStop || last.Timestamp != t0.Add(60*time.Minute).UnixMilli() {
		t.Fatalf("expected stop at deadline, got %+v", last)
	}
	if n := rec.count(KindTimeout); n != 1 {
		t.Fatalf("expected 1 timeout notification, got %d", n)
	}
	if n := rec.count(KindReminder); n != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, k := range kinds {
		if k == ChangeTimedOut {
			found = true
		}
	}
	if !found {
		t.Fatalf("observers not told about the timeout: %v", kinds)
	}
}

func TestReminderDeliveredOnce(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)

	clock.Advance(29 * time.Minute)
	if rec.count(KindReminder) != 0 {
		t.Fatal("reminder fired early")
	}
	clock.Advance(time.Minute)
	if rec.count(KindReminder) != 1 {
		t.Fatal("reminder did not fire at 30 minutes")
	}

	tr.Resume()
	clock.Advance(20 * time.Minute)
	if n := rec.count(KindReminder); n != 1 {
		t.Fatalf("expected a single reminder, got %d", n)
	}
	if tr.ActiveEntry() == nil {
		t.Fatal("entry should still be running before the timeout")
	}
}

func TestTimeoutAfterSuspend(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)

	clock.Jump(3 * time.Hour)
	wait(t, tr.Resume())

	if tr.ActiveEntry() != nil {
		t.Fatal("expected auto-stop on resume")
	}
	last := lastEvent(t, tr)
	if last.Timestamp != t0.Add(60*time.Minute).UnixMilli() {
		t.Fatalf("stop should be stamped at the deadline, got %v", last.Time())
	}

	clock.Advance(time.Hour)
	if n := rec.count(KindTimeout); n != 1 {
		t.Fatalf("expected exactly one timeout notification, got %d", n)
	}
	if n := len(tr.History()); n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
}

func TestResumeReminderTolerance(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)

	clock.Jump(34 * time.Minute)
	tr.Resume()
	if rec.count(KindReminder) != 1 {
		t.Fatal("reminder within tolerance should fire on resume")
	}
}

func TestResumeMissesStaleReminder(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)

	clock.Jump(40 * time.Minute)
	tr.Resume()
	clock.Advance(10 * time.Minute)
	if rec.count(KindReminder) != 0 {
		t.Fatal("reminder beyond tolerance should be missed")
	}
	if tr.ActiveEntry() == nil {
		t.Fatal("entry should still be running")
	}
}

func TestRestartRecoveryStopsOverdueEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := t0.Add(-2 * time.Hour)
	if err := s.SaveActiveEntry(ctx, &store.ActiveEntry{TaskID: "x", TaskName: "X", StartTime: start.UnixMilli()}); err != nil {
		t.Fatalf("SaveActiveEntry: %v", err)
	}

	tr, rec := newTestTracker(t, s, newFakeClock(t0))
	if tr.ActiveEntry() != nil {
		t.Fatal("overdue entry should be stopped on load")
	}
	if rec.count(KindTimeout) != 1 {
		t.Fatal("expected a timeout notification")
	}
	last := lastEvent(t, tr)
	if last.Timestamp != start.Add(time.Hour).UnixMilli() {
		t.Fatalf("expected stop at deadline, got %v", last.Time())
	}

	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	active, err := s.LoadActiveEntry(ctx)
	if err != nil || active != nil {
		t.Fatalf("expected cleared active entry in storage, got %+v, %v", active, err)
	}
}

func TestRestartRecoverySkipsLateReminder(t *testing.T) {
	s := newTestStore(t)
	start := t0.Add(-35 * time.Minute)
	if err := s.SaveActiveEntry(context.Background(), &store.ActiveEntry{TaskID: "x", TaskName: "X", StartTime: start.UnixMilli()}); err != nil {
		t.Fatalf("SaveActiveEntry: %v", err)
	}

	tr, rec := newTestTracker(t, s, newFakeClock(t0))
	if rec.count(KindReminder) != 0 {
		t.Fatal("reminder 5 minutes late should not fire at startup")
	}
	if reminder, timeout := tr.Armed(); reminder || !timeout {
		t.Fatalf("expected only the timeout armed, got reminder=%v timeout=%v", reminder, timeout)
	}
}

func TestRestExempt(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	if _, _, err := tr.StartRest(); err != nil {
		t.Fatalf("StartRest: %v", err)
	}
	if reminder, timeout := tr.Armed(); reminder || timeout {
		t.Fatal("rest must not arm the policy")
	}

	clock.Advance(3 * time.Hour)
	tr.Resume()
	if active := tr.ActiveEntry(); active == nil || !active.IsRest() {
		t.Fatal("rest should still be running")
	}
	if len(rec.notes) != 0 {
		t.Fatalf("rest produced notifications: %+v", rec.notes)
	}
}

func TestDisabledPolicy(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	off := store.TimerSettings{ReminderEnabled: false, ReminderMinutes: 30, TimeoutEnabled: false, TimeoutMinutes: 60}
	if _, err := tr.UpdateTimerSettings(off); err != nil {
		t.Fatalf("UpdateTimerSettings: %v", err)
	}
	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	clock.Advance(5 * time.Hour)

	if tr.ActiveEntry() == nil {
		t.Fatal("entry should run forever with the policy disabled")
	}
	if len(rec.notes) != 0 {
		t.Fatal("expected no notifications")
	}
}

func TestUpdateTimerSettings(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	_, err := tr.UpdateTimerSettings(store.TimerSettings{ReminderEnabled: true, ReminderMinutes: 0, TimeoutEnabled: true, TimeoutMinutes: 60})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	clock.Advance(20 * time.Minute)

	c, err := tr.UpdateTimerSettings(store.TimerSettings{ReminderEnabled: false, ReminderMinutes: 30, TimeoutEnabled: true, TimeoutMinutes: 10})
	if err != nil {
		t.Fatalf("UpdateTimerSettings: %v", err)
	}
	wait(t, c)

	if tr.ActiveEntry() != nil {
		t.Fatal("lowering the timeout below elapsed time should stop the entry")
	}
	if last := lastEvent(t, tr); last.Timestamp != t0.Add(10*time.Minute).UnixMilli() {
		t.Fatalf("expected stop at new deadline, got %v", last.Time())
	}
	if rec.count(KindTimeout) != 1 {
		t.Fatal("expected a timeout notification")
	}
}

func TestUpdateTimerSettingsRejectsUnusableTimeout(t *testing.T) {
	clock := newFakeClock(t0)
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	clock.Advance(time.Minute)

	for _, m := range []float64{1e12, math.Inf(1), math.NaN()} {
		_, err := tr.UpdateTimerSettings(store.TimerSettings{ReminderEnabled: true, ReminderMinutes: 30, TimeoutEnabled: true, TimeoutMinutes: m})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("timeout %v: expected ValidationError, got %v", m, err)
		}
	}

	active := tr.ActiveEntry()
	if active == nil || active.TaskID != a.ID {
		t.Fatalf("entry should keep running, got %+v", active)
	}
	if got := tr.TimerSettings(); got != store.DefaultTimerSettings() {
		t.Fatalf("rejected settings should not be applied, got %+v", got)
	}
	if len(tr.History()) != 1 {
		t.Fatalf("expected only the start event, got %d events", len(tr.History()))
	}
	if rec.count(KindTimeout) != 0 {
		t.Fatal("expected no timeout notification")
	}
}

func TestCancelledTimerIsIgnored(t *testing.T) {
	clock := newFakeClock(t0)
	clock.ignoreStop = true
	tr, rec := newTestTracker(t, newTestStore(t), clock)

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	clock.Advance(time.Minute)
	tr.StopActive()
	clock.Advance(time.Minute)
	mustStart(t, tr, a.ID)

	// The first entry's callbacks still fire on the fake clock.
	clock.Advance(59 * time.Minute)

	if n := rec.count(KindTimeout); n != 0 {
		t.Fatalf("stale timeout fired %d times", n)
	}
	if tr.ActiveEntry() == nil {
		t.Fatal("second entry stopped by the first entry's timer")
	}
	if n := rec.count(KindReminder); n != 1 {
		t.Fatalf("expected only the second entry's reminder, got %d", n)
	}
}

// ============================================================
// Observers and persistence
// ============================================================

func TestObserversRunOutsideLock(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))

	var seen *store.ActiveEntry
	tr.OnChange(func(c Change) {
		if c.Kind == ChangeStarted {
			seen = tr.ActiveEntry()
		}
	})

	a := mustAdd(t, tr, "A")
	mustStart(t, tr, a.ID)
	if seen == nil || seen.TaskID != a.ID {
		t.Fatalf("observer saw %+v", seen)
	}
}

type failingStore struct {
	*store.DB
}

func (f failingStore) SaveHistory(ctx context.Context, events []store.HistoryEvent) error {
	return errors.New("disk full")
}

func TestStorageErrorSurfacedOnCommit(t *testing.T) {
	tr, _ := newTestTracker(t, failingStore{newTestStore(t)}, newFakeClock(t0))

	a := mustAdd(t, tr, "A")
	_, c, err := tr.StartTask(a.ID)
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	err = c.Wait(context.Background())
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if serr.Op != "save history" {
		t.Fatalf("unexpected op %q", serr.Op)
	}
	if tr.ActiveEntry() == nil {
		t.Fatal("in-memory transition should stand after a failed write")
	}
}

func TestCommitAfterClose(t *testing.T) {
	tr, _ := newTestTracker(t, newTestStore(t), newFakeClock(t0))
	tr.Close()

	_, c, err := tr.AddTask("late")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := c.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
