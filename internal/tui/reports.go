package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/tempo/internal/metrics"
	"github.com/sadopc/tempo/internal/store"
	"github.com/sadopc/tempo/internal/tracker"
)

var barColors = []string{"#6C63FF", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#3498DB"}

type reportsModel struct {
	tracker *tracker.Tracker
	width   int
	height  int

	offset int // days back from today (0 = today)
	day    metrics.Window
	result metrics.Result

	chart barchart.Model
}

func newReportsModel(t *tracker.Tracker) reportsModel {
	return reportsModel{
		tracker: t,
		day:     metrics.Day(t.Now()),
		chart:   barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	day    metrics.Window
	result metrics.Result
}

func (r reportsModel) refresh() tea.Cmd {
	offset := r.offset
	return func() tea.Msg {
		snap := r.tracker.Snapshot()
		day := metrics.Day(snap.Now.AddDate(0, 0, -offset))
		return reportsDataMsg{
			day:    day,
			result: metrics.Calculate(snap.History, snap.Active, day, snap.Now),
		}
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.day = msg.day
		r.result = msg.result
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 10
	if r.height > 34 {
		chartHeight = 14
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for i, t := range r.result.Ranked() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(barColors[i%len(barColors)]))
		bars = append(bars, barchart.BarData{
			Label:  truncate(t.TaskName, 10),
			Values: []barchart.BarValue{{Name: t.TaskName, Value: t.Duration.Hours(), Style: style}},
		})
	}
	if r.result.TotalRest > 0 {
		bars = append(bars, barchart.BarData{
			Label: store.RestName,
			Values: []barchart.BarValue{{
				Name:  store.RestName,
				Value: r.result.TotalRest.Hours(),
				Style: lipgloss.NewStyle().Foreground(colorSubtle),
			}},
		})
	}

	if len(bars) == 0 {
		return
	}
	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	label := r.day.Start.Format("Mon, Jan 02 2006")
	if r.offset == 0 {
		label = "Today, " + label
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", mutedStyle.Render(label),
	)
	nav := mutedStyle.Render("  ←/→: previous/next day  e: export")

	if r.result.Empty() {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				header, "", mutedStyle.Render("  No data for this day"), "", nav,
			),
		)
	}

	totals := fmt.Sprintf("  Work %s   Rest %s",
		highlightStyle.Render(metrics.FormatDuration(r.result.TotalWork())),
		highlightStyle.Render(metrics.FormatDuration(r.result.TotalRest)),
	)

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", totals, "", r.renderTimeline(w), "", nav,
		),
	)
}

func (r reportsModel) renderTimeline(w int) string {
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-13s %-24s %12s", "Time", "Task", "Duration")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 51))))

	for _, iv := range r.result.Intervals {
		end := iv.End.Local().Format("15:04")
		if iv.Open {
			end = "now  "
		}
		span := fmt.Sprintf("%s–%s", iv.Start.Local().Format("15:04"), end)
		style := normalItemStyle
		if iv.IsRest {
			style = mutedStyle
		} else if iv.Open {
			style = successStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("  %-13s %-24s %12s",
			span, truncate(iv.TaskName, 24), metrics.FormatDuration(iv.Duration()))))
	}

	return strings.Join(rows, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// reportDay is the window currently shown, used by the timeline export.
func (r reportsModel) reportDay() time.Time { return r.day.Start }
