package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/tempo/internal/tracker"
)

// Bridge carries tracker notifications and state changes into the Bubble
// Tea program. It can be handed to the tracker before the program exists.
type Bridge struct {
	ch chan tea.Msg
}

func NewBridge() *Bridge {
	return &Bridge{ch: make(chan tea.Msg, 64)}
}

// Notify implements tracker.Notifier.
func (b *Bridge) Notify(n tracker.Notification) {
	b.send(notificationMsg{note: n})
}

// Observe is registered with Tracker.OnChange.
func (b *Bridge) Observe(c tracker.Change) {
	b.send(changeMsg{change: c})
}

// send never blocks the tracker. Changes only trigger a refresh, so one
// dropped while the queue is full is covered by the next.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

func (b *Bridge) listen() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}
