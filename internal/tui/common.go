package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/tempo/internal/tracker"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewTasks
	viewReports
	viewHeatmap
	viewSettings
)

var viewNames = []string{"Dashboard", "Tasks", "Reports", "Heatmap", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

type notificationMsg struct {
	note tracker.Notification
}

type changeMsg struct {
	change tracker.Change
}

// --- Helpers ---

// commitCmd waits for a write in the background and reports its outcome.
func commitCmd(c *tracker.Commit, ok string) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		if err := c.Wait(context.Background()); err != nil {
			return statusMsg{text: fmt.Sprintf("Not saved: %v", err), isError: true}
		}
		if ok == "" {
			return nil
		}
		return statusMsg{text: ok}
	}
}

func errStatus(err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
	}
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%.1fh", d.Hours())
}
