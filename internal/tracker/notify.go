package tracker

import (
	"time"

	"github.com/sadopc/tempo/internal/store"
)

type NotificationKind int

const (
	KindReminder NotificationKind = iota
	KindTimeout
)

// Notification is a request to tell the user something. Delivery is up to
// the Notifier.
type Notification struct {
	Kind    NotificationKind
	Title   string
	Message string
	At      time.Time
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type ChangeKind int

const (
	ChangeStarted ChangeKind = iota
	ChangeStopped
	ChangeTimedOut
	ChangeTasks
	ChangeHistoryCleared
	ChangeAllCleared
	ChangeSettings
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeStarted:
		return "started"
	case ChangeStopped:
		return "stopped"
	case ChangeTimedOut:
		return "timed out"
	case ChangeTasks:
		return "tasks"
	case ChangeHistoryCleared:
		return "history cleared"
	case ChangeAllCleared:
		return "all cleared"
	case ChangeSettings:
		return "settings"
	}
	return "unknown"
}

// Change is delivered to observers after every state transition.
type Change struct {
	Kind  ChangeKind
	Entry store.ActiveEntry // entry started or stopped, zero otherwise
}
