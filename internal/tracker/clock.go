package tracker

import (
	"sync"
	"time"
)

// Clock abstracts wall time and one-shot scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// deferred is a cancelable one-shot callback. Once cancelled or fired it
// never runs again, and Cancel on a nil or spent handle is a no-op.
type deferred struct {
	mu    sync.Mutex
	timer Timer
	spent bool
}

func schedule(c Clock, d time.Duration, f func()) *deferred {
	df := &deferred{}
	t := c.AfterFunc(d, func() {
		if df.claim() {
			f()
		}
	})
	df.mu.Lock()
	df.timer = t
	df.mu.Unlock()
	return df
}

func (d *deferred) claim() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spent {
		return false
	}
	d.spent = true
	return true
}

func (d *deferred) Cancel() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spent {
		return
	}
	d.spent = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *deferred) pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.spent
}
