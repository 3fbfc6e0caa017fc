package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sadopc/tempo/internal/metrics"
	"github.com/sadopc/tempo/internal/store"
	"github.com/sadopc/tempo/internal/tracker"
)

const recentLimit = 8

type dashboardModel struct {
	tracker *tracker.Tracker
	width   int
	height  int

	snap tracker.Snapshot
	now  time.Time

	// Task picker state
	picking      bool
	pickerCursor int
}

func newDashboardModel(t *tracker.Tracker) dashboardModel {
	return dashboardModel{
		tracker: t,
		snap:    t.Snapshot(),
		now:     t.Now(),
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) active() *store.ActiveEntry { return d.snap.Active }

func (d dashboardModel) elapsed() time.Duration {
	if d.snap.Active == nil {
		return 0
	}
	return d.now.Sub(d.snap.Active.Start())
}

type dashboardDataMsg struct {
	snap tracker.Snapshot
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		return dashboardDataMsg{snap: d.tracker.Snapshot()}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.snap = msg.snap
		d.now = msg.snap.Now
		if d.pickerCursor >= len(d.snap.Tasks) {
			d.pickerCursor = max(0, len(d.snap.Tasks)-1)
		}
		return d, nil

	case tickMsg:
		d.now = time.Time(msg)
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			tasks := d.snap.Tasks
			if len(tasks) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No tasks yet. Press 2 to go to Tasks and create one.", isError: true}
				}
			}
			if len(tasks) == 1 {
				return d.startTask(tasks[0].ID)
			}
			d.picking = true
			return d, nil

		case key.Matches(msg, keys.Rest):
			_, c, err := d.tracker.StartRest()
			if err != nil {
				return d, errStatus(err)
			}
			return d, tea.Batch(d.loadData(), commitCmd(c, ""))

		case key.Matches(msg, keys.Stop):
			return d.stop()
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.snap.Tasks)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		d.picking = false
		if d.pickerCursor < len(d.snap.Tasks) {
			return d.startTask(d.snap.Tasks[d.pickerCursor].ID)
		}
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTask(id string) (dashboardModel, tea.Cmd) {
	tr, c, err := d.tracker.StartTask(id)
	if err != nil {
		return d, errStatus(err)
	}
	text := ""
	if tr.Changed {
		text = "Started " + tr.Entry.TaskName
	}
	return d, tea.Batch(d.loadData(), commitCmd(c, text))
}

func (d dashboardModel) stop() (dashboardModel, tea.Cmd) {
	st, ok, c := d.tracker.StopActive()
	if !ok {
		return d, nil
	}
	text := fmt.Sprintf("Stopped %s after %s", st.Entry.TaskName, metrics.FormatDuration(st.Duration))
	return d, tea.Batch(d.loadData(), commitCmd(c, text))
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderTaskPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	a := d.snap.Active
	if a != nil {
		timeStr := metrics.FormatClock(d.elapsed())
		started := mutedStyle.Render("started " + humanize.RelTime(a.Start(), d.now, "ago", "from now"))

		var timeDisplay, indicator string
		if a.IsRest() {
			timeDisplay = timerRestStyle.Width(w - 6).Render(timeStr)
			indicator = highlightStyle.Render("◌  RESTING")
		} else {
			timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
			indicator = successStyle.Render("●  RUNNING")
		}

		content := lipgloss.JoinVertical(lipgloss.Center,
			timeDisplay,
			indicator,
			highlightStyle.Render(a.TaskName),
			started,
		)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timerStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  IDLE"),
		mutedStyle.Render("Press s to start a task or b to rest"),
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	res := metrics.Calculate(d.snap.History, d.snap.Active, metrics.Day(d.now), d.now)

	title := titleStyle.Render("Today")
	total := highlightStyle.Render(metrics.FormatClock(res.TotalWork()))
	header := fmt.Sprintf("%s  %s", title, total)

	if res.Empty() {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("Nothing tracked today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, header)
	for _, t := range res.Ranked() {
		rows = append(rows, fmt.Sprintf("  %s %-24s %s", successStyle.Render("●"), t.TaskName, metrics.FormatClock(t.Duration)))
	}
	if res.TotalRest > 0 {
		rows = append(rows, fmt.Sprintf("  %s %-24s %s", highlightStyle.Render("◌"), store.RestName, metrics.FormatClock(res.TotalRest)))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Activity")
	events := metrics.ForDisplay(d.snap.History)
	if len(events) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No activity yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for _, e := range events[:min(recentLimit, len(events))] {
		marker := "■"
		if e.Type.IsStart() {
			marker = "●"
		}
		row := fmt.Sprintf("  %s [%s] %s: %s", marker, e.Time().Local().Format("15:04:05"), metrics.Describe(e.Type), e.TaskName)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderTaskPicker(w int) string {
	title := titleStyle.Render("Select Task")

	var rows []string
	rows = append(rows, title)
	for i, t := range d.snap.Tasks {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		row := style.Render(cursor + t.Name)
		if a := d.snap.Active; a != nil && a.TaskID == t.ID {
			row += accentStyle.Render(" (running)")
		}
		rows = append(rows, row)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
