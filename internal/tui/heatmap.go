package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sadopc/tempo/internal/metrics"
	"github.com/sadopc/tempo/internal/tracker"
)

type heatmapModel struct {
	tracker *tracker.Tracker
	width   int
	height  int

	totals []metrics.DayTotal
}

func newHeatmapModel(t *tracker.Tracker) heatmapModel {
	return heatmapModel{tracker: t}
}

func (m *heatmapModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type heatmapDataMsg struct {
	totals []metrics.DayTotal
}

func (m heatmapModel) refresh() tea.Cmd {
	return func() tea.Msg {
		snap := m.tracker.Snapshot()
		return heatmapDataMsg{
			totals: metrics.DailyTotals(snap.History, snap.Active, snap.Now, metrics.HeatmapDays, snap.Now),
		}
	}
}

func (m heatmapModel) update(msg tea.Msg) (heatmapModel, tea.Cmd) {
	if msg, ok := msg.(heatmapDataMsg); ok {
		m.totals = msg.totals
	}
	return m, nil
}

// level maps a day's work onto one of the heat levels relative to the
// busiest day.
func level(work, peak time.Duration) int {
	if work <= 0 || peak <= 0 {
		return 0
	}
	n := len(heatLevels) - 1
	l := int(float64(work) / float64(peak) * float64(n))
	return min(max(l, 1), n)
}

func (m heatmapModel) view() string {
	w := m.width - 4
	title := titleStyle.Render("Workload, last 12 months")

	if len(m.totals) == 0 {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render("  No data")),
		)
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title, "", m.renderGrid(), "", m.renderLegend(), "", m.renderSummary(),
		),
	)
}

// renderGrid lays the days out in week columns, Sunday on top.
func (m heatmapModel) renderGrid() string {
	peak := metrics.MaxWork(m.totals)
	lead := int(m.totals[0].Day.Weekday())
	weeks := (lead + len(m.totals) + 6) / 7

	cells := make([][]string, 7)
	for row := range cells {
		cells[row] = make([]string, weeks)
		for col := range cells[row] {
			cells[row][col] = " "
		}
	}
	for i, d := range m.totals {
		pos := lead + i
		style := lipgloss.NewStyle().Foreground(heatLevels[level(d.Work, peak)])
		cells[pos%7][pos/7] = style.Render("■")
	}

	labels := []string{"   ", "Mon", "   ", "Wed", "   ", "Fri", "   "}
	var rows []string
	rows = append(rows, "    "+m.monthHeader(lead, weeks))
	for row := range cells {
		rows = append(rows, mutedStyle.Render(labels[row])+" "+strings.Join(cells[row], ""))
	}
	return strings.Join(rows, "\n")
}

func (m heatmapModel) monthHeader(lead, weeks int) string {
	header := []rune(strings.Repeat(" ", weeks+3))
	last := time.Month(0)
	for col := 0; col < weeks; col++ {
		i := col*7 - lead
		if i < 0 {
			i = 0
		}
		if i >= len(m.totals) {
			break
		}
		month := m.totals[i].Day.Month()
		if month == last {
			continue
		}
		last = month
		copy(header[col:], []rune(month.String()[:3]))
	}
	return mutedStyle.Render(strings.TrimRight(string(header), " "))
}

func (m heatmapModel) renderLegend() string {
	var squares []string
	for _, c := range heatLevels {
		squares = append(squares, lipgloss.NewStyle().Foreground(c).Render("■"))
	}
	return mutedStyle.Render("    Less ") + strings.Join(squares, " ") + mutedStyle.Render(" More")
}

func (m heatmapModel) renderSummary() string {
	var total time.Duration
	days := 0
	for _, d := range m.totals {
		total += d.Work
		if d.Work > 0 {
			days++
		}
	}
	return fmt.Sprintf("  %s worked on %s days, busiest day %s",
		highlightStyle.Render(formatHours(total)),
		highlightStyle.Render(humanize.Comma(int64(days))),
		highlightStyle.Render(metrics.FormatDuration(metrics.MaxWork(m.totals))),
	)
}
