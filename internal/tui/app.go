package tui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/sadopc/tempo/internal/config"
	"github.com/sadopc/tempo/internal/export"
	"github.com/sadopc/tempo/internal/metrics"
	"github.com/sadopc/tempo/internal/tracker"
)

const defaultResumeGap = 5 * time.Second

var exportFormats = []string{"History (CSV)", "History (JSON)", "Report timeline (CSV)"}

// App is the root Bubble Tea model.
type App struct {
	tracker   *tracker.Tracker
	bridge    *Bridge
	logger    *log.Logger
	exportDir string
	resumeGap time.Duration
	lastTick  time.Time

	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	dashboard dashboardModel
	tasks     tasksModel
	reports   reportsModel
	heatmap   heatmapModel
	settings  settingsModel

	help      help.Model
	status    string
	statusErr bool
	notice    string
}

type Option func(*App)

// WithStorageInfo shows where data is kept on the settings view.
func WithStorageInfo(s StorageInfo) Option {
	return func(a *App) { a.settings.storage = s }
}

// WithConfig lets the settings view edit the storage section of the
// config file at path.
func WithConfig(cfg *config.Config, path string) Option {
	return func(a *App) {
		a.settings.cfg = cfg
		a.settings.cfgPath = path
		a.resumeGap = cfg.ResumeGap()
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithResumeGap sets how long ticks may stall before the app assumes the
// machine was asleep.
func WithResumeGap(d time.Duration) Option {
	return func(a *App) { a.resumeGap = d }
}

// WithExportDir sets where exports are written. Defaults to the home
// directory.
func WithExportDir(dir string) Option {
	return func(a *App) { a.exportDir = dir }
}

func NewApp(t *tracker.Tracker, b *Bridge, opts ...Option) App {
	h := help.New()
	h.ShowAll = false

	a := App{
		tracker:    t,
		bridge:     b,
		logger:     log.New(io.Discard),
		resumeGap:  defaultResumeGap,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(t),
		tasks:      newTasksModel(t),
		reports:    newReportsModel(t),
		heatmap:    newHeatmapModel(t),
		settings:   newSettingsModel(t),
		help:       h,
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.exportDir == "" {
		a.exportDir, _ = os.UserHomeDir()
	}
	return a
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.dashboard.Init(),
		a.tasks.refresh(),
		a.settings.refresh(),
		tickCmd(),
	}
	if a.bridge != nil {
		cmds = append(cmds, a.bridge.listen())
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) listen() tea.Cmd {
	if a.bridge == nil {
		return nil
	}
	return a.bridge.listen()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.heatmap.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		a.notice = ""

		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewTasks
			return a, a.tasks.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewReports
			return a, a.reports.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewHeatmap
			return a, a.heatmap.refresh()
		case key.Matches(msg, keys.Tab5):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
		// Compare wall-clock readings; the monotonic clock can stall
		// during sleep.
		now := time.Time(msg).Round(0)
		if !a.lastTick.IsZero() && now.Sub(a.lastTick) > a.resumeGap {
			a.logger.Info("clock jumped, re-checking timers", "gap", now.Sub(a.lastTick).Round(time.Second))
			cmds = append(cmds, commitCmd(a.tracker.Resume(), ""))
		}
		a.lastTick = now

		// Always route ticks to dashboard timer
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case notificationMsg:
		a.notice = fmt.Sprintf("%s: %s", msg.note.Title, msg.note.Message)
		return a, a.listen()

	case changeMsg:
		cmds = append(cmds, a.listen(), a.refreshAll())
		return a, tea.Batch(cmds...)

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusErr = false
		a.exportPicking = false
		return a, nil

	// Data messages go to their owner regardless of the visible view.
	case dashboardDataMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd
	case tasksDataMsg:
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.update(msg)
		return a, cmd
	case reportsDataMsg:
		var cmd tea.Cmd
		a.reports, cmd = a.reports.update(msg)
		return a, cmd
	case heatmapDataMsg:
		var cmd tea.Cmd
		a.heatmap, cmd = a.heatmap.update(msg)
		return a, cmd
	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewHeatmap:
		a.heatmap, cmd = a.heatmap.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.picking
	case viewTasks:
		return a.tasks.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewTasks:
		return a.tasks.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewHeatmap:
		return a.heatmap.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) refreshAll() tea.Cmd {
	return tea.Batch(
		a.dashboard.loadData(),
		a.tasks.refresh(),
		a.reports.refresh(),
		a.heatmap.refresh(),
		a.settings.refresh(),
	)
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewTasks:
		content = a.tasks.view()
	case viewReports:
		content = a.reports.view()
	case viewHeatmap:
		content = a.heatmap.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	// Show export picker overlay
	if a.exportPicking {
		content = a.renderExportPicker()
	}

	if a.notice != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, noticeStyle.Render(a.notice), content)
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("tempo")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Timer indicator in footer
	timerInfo := ""
	if e := a.dashboard.active(); e != nil {
		elapsed := metrics.FormatClock(a.dashboard.elapsed())
		if e.IsRest() {
			timerInfo = warningStyle.Render(" ☕ " + elapsed)
		} else {
			timerInfo = successStyle.Render(" ● " + elapsed)
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	day := a.reports.reportDay()
	dir := a.exportDir
	return func() tea.Msg {
		snap := a.tracker.Snapshot()
		dateStr := snap.Now.Format("2006-01-02")

		var path string
		switch format {
		case 0:
			path = filepath.Join(dir, fmt.Sprintf("tempo-export-%s.csv", dateStr))
			if err := export.HistoryToCSV(snap.History, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		case 1:
			path = filepath.Join(dir, fmt.Sprintf("tempo-export-%s.json", dateStr))
			if err := export.HistoryToJSON(snap.History, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		default:
			w := metrics.Day(day)
			res := metrics.Calculate(snap.History, snap.Active, w, snap.Now)
			path = filepath.Join(dir, fmt.Sprintf("tempo-timeline-%s.csv", w.Start.Format("2006-01-02")))
			if err := export.IntervalsToCSV(res.Intervals, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		}

		a.logger.Info("exported", "path", path)
		return exportDoneMsg{path: path}
	}
}
