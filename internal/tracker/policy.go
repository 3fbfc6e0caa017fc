package tracker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sadopc/tempo/internal/store"
)

const (
	// normalCatchUp is how late a reminder may still be delivered when the
	// policy is armed after a transition or at startup.
	normalCatchUp = 30 * time.Second
	// resumeCatchUp applies after the process was suspended.
	resumeCatchUp = 5 * time.Minute
)

type policyState struct {
	reminder *deferred
	timeout  *deferred
	// gen changes on every disarm; callbacks from an older generation are
	// ignored.
	gen uint64
	// reminded identifies the entry whose reminder was delivered or missed.
	reminded string
}

func entryKey(e store.ActiveEntry) string {
	return e.TaskID + "@" + strconv.FormatInt(e.StartTime, 10)
}

func (t *Tracker) disarmLocked() {
	t.policy.reminder.Cancel()
	t.policy.timeout.Cancel()
	t.policy.reminder = nil
	t.policy.timeout = nil
	t.policy.gen++
}

// armLocked evaluates the active entry against the timer settings at now.
// An entry already past its timeout is stopped at the deadline; otherwise
// the reminder and timeout callbacks are scheduled for the remaining time.
func (t *Tracker) armLocked(fx *effects, now time.Time, catchUp time.Duration) {
	t.disarmLocked()
	if t.active == nil || t.active.IsRest() {
		return
	}

	e := *t.active
	s := t.settings
	elapsed := now.Sub(e.Start())

	if s.TimeoutEnabled && elapsed >= s.Timeout() {
		t.timeoutLocked(fx, e)
		return
	}

	gen := t.policy.gen
	key := entryKey(e)
	if s.ReminderEnabled && t.policy.reminded != key {
		remaining := s.Reminder() - elapsed
		switch {
		case remaining > 0:
			t.policy.reminder = schedule(t.clock, remaining, func() { t.fireReminder(gen, e) })
		case remaining >= -catchUp:
			t.remindLocked(fx, e, now)
		default:
			t.policy.reminded = key
			t.logger.Debug("reminder missed", "task", e.TaskName, "late", (-remaining).Round(time.Second))
		}
	}

	if s.TimeoutEnabled {
		t.policy.timeout = schedule(t.clock, s.Timeout()-elapsed, func() { t.fireTimeout(gen, e) })
	}
}

// current reports whether a callback armed for e in generation gen is still
// relevant.
func (t *Tracker) currentLocked(gen uint64, e store.ActiveEntry) bool {
	return !t.closed && gen == t.policy.gen && t.active != nil && *t.active == e
}

func (t *Tracker) fireReminder(gen uint64, e store.ActiveEntry) {
	t.mu.Lock()
	if !t.currentLocked(gen, e) || t.policy.reminded == entryKey(e) {
		t.mu.Unlock()
		return
	}
	fx := &effects{}
	t.policy.reminder = nil
	t.remindLocked(fx, e, t.clock.Now())
	t.mu.Unlock()

	t.dispatch(fx)
}

func (t *Tracker) remindLocked(fx *effects, e store.ActiveEntry, now time.Time) {
	t.policy.reminded = entryKey(e)
	fx.notify(Notification{
		Kind:    KindReminder,
		Title:   "Reminder",
		Message: fmt.Sprintf("%s has been running for %s minutes.", e.TaskName, formatMinutes(t.settings.ReminderMinutes)),
		At:      now,
	})
	t.logger.Info("reminder delivered", "task", e.TaskName)
}

func (t *Tracker) fireTimeout(gen uint64, e store.ActiveEntry) {
	t.mu.Lock()
	if !t.currentLocked(gen, e) {
		t.mu.Unlock()
		return
	}
	fx := &effects{}
	t.timeoutLocked(fx, e)
	t.commitLocked(fx)
	t.mu.Unlock()

	t.dispatch(fx)
}

// timeoutLocked stops e at start+timeout regardless of when it runs, so a
// late callback or a restart records the same stop time.
func (t *Tracker) timeoutLocked(fx *effects, e store.ActiveEntry) {
	deadline := e.Start().Add(t.settings.Timeout())
	t.stopLocked(fx, deadline, ChangeTimedOut)
	fx.notify(Notification{
		Kind:    KindTimeout,
		Title:   "Timeout",
		Message: fmt.Sprintf("%s was stopped after %s minutes.", e.TaskName, formatMinutes(t.settings.TimeoutMinutes)),
		At:      t.clock.Now(),
	})
	t.logger.Warn("entry timed out", "task", e.TaskName, "deadline", deadline.Format(time.RFC3339))
}

// Resume re-evaluates the policy against the wall clock. Call it after the
// process may have been suspended: timers do not advance while asleep.
func (t *Tracker) Resume() *Commit {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return doneCommit(ErrClosed)
	}
	fx := &effects{}
	t.armLocked(fx, t.clock.Now(), resumeCatchUp)
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.dispatch(fx)
	return c
}

// UpdateTimerSettings validates and stores new settings and re-arms the
// policy for the running entry.
func (t *Tracker) UpdateTimerSettings(s store.TimerSettings) (*Commit, error) {
	if err := s.Validate(); err != nil {
		return nil, &ValidationError{Field: "timer settings", Reason: err.Error()}
	}

	t.mu.Lock()
	t.settings = s
	fx := &effects{}
	fx.mark(dirtySettings)
	fx.changed(Change{Kind: ChangeSettings})
	t.armLocked(fx, t.clock.Now(), normalCatchUp)
	c := t.commitLocked(fx)
	t.mu.Unlock()

	t.logger.Info("timer settings updated",
		"reminder", s.ReminderEnabled, "reminder_minutes", s.ReminderMinutes,
		"timeout", s.TimeoutEnabled, "timeout_minutes", s.TimeoutMinutes)
	t.dispatch(fx)
	return c, nil
}

// Armed reports which policy callbacks are pending.
func (t *Tracker) Armed() (reminder, timeout bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy.reminder.pending(), t.policy.timeout.pending()
}

func formatMinutes(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}
