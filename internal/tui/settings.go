package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/tempo/internal/config"
	"github.com/sadopc/tempo/internal/store"
	"github.com/sadopc/tempo/internal/tracker"
)

// StorageInfo describes where data is kept.
type StorageInfo interface {
	String() string
	Degraded() bool
}

type settingsForm int

const (
	settingsFormTimer settingsForm = iota
	settingsFormStorage
	settingsFormClearHistory
	settingsFormClearAll
)

type settingsModel struct {
	tracker *tracker.Tracker
	storage StorageInfo
	cfg     *config.Config
	cfgPath string
	width   int
	height  int

	timer      store.TimerSettings
	formActive bool
	form       *huh.Form
	formType   settingsForm

	// Form values as pointers (survive value copies)
	reminderOn  *bool
	reminderMin *string
	timeoutOn   *bool
	timeoutMin  *string
	backend     *string
	dataFolder  *string
	confirm     *bool
}

func newSettingsModel(t *tracker.Tracker) settingsModel {
	ron, rmin, ton, tmin := false, "", false, ""
	backend, folder, confirm := "", "", false
	return settingsModel{
		tracker:     t,
		timer:       t.TimerSettings(),
		reminderOn:  &ron,
		reminderMin: &rmin,
		timeoutOn:   &ton,
		timeoutMin:  &tmin,
		backend:     &backend,
		dataFolder:  &folder,
		confirm:     &confirm,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	timer store.TimerSettings
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return settingsDataMsg{timer: s.tracker.TimerSettings()}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(settingsDataMsg); ok {
		s.timer = msg.timer
		return s, nil
	}

	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm(settingsFormTimer)
		case key.Matches(msg, keys.Storage):
			if s.cfg != nil {
				return s.showForm(settingsFormStorage)
			}
		case key.Matches(msg, keys.ClearHistory):
			return s.showForm(settingsFormClearHistory)
		case key.Matches(msg, keys.ClearAll):
			return s.showForm(settingsFormClearAll)
		}
	}
	return s, nil
}

func validateMinutes(v string) error {
	if _, err := parseMinutes(v); err != nil {
		return err
	}
	return nil
}

func (s settingsModel) showForm(kind settingsForm) (settingsModel, tea.Cmd) {
	s.formType = kind
	*s.confirm = false

	var groups []*huh.Group
	switch kind {
	case settingsFormTimer:
		*s.reminderOn = s.timer.ReminderEnabled
		*s.reminderMin = formatMinutes(s.timer.ReminderMinutes)
		*s.timeoutOn = s.timer.TimeoutEnabled
		*s.timeoutMin = formatMinutes(s.timer.TimeoutMinutes)
		groups = append(groups,
			huh.NewGroup(
				huh.NewConfirm().Title("Remind me when a task runs long").Value(s.reminderOn),
				huh.NewInput().Title("Reminder after (min)").Value(s.reminderMin).Validate(validateMinutes),
			).Title("Reminder"),
			huh.NewGroup(
				huh.NewConfirm().Title("Stop tasks automatically").Value(s.timeoutOn),
				huh.NewInput().Title("Stop after (min)").Value(s.timeoutMin).Validate(validateMinutes),
			).Title("Timeout"),
		)
	case settingsFormStorage:
		*s.backend = s.cfg.Backend
		*s.dataFolder = s.cfg.DataFolder
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().Title("Store data in").
				Options(
					huh.NewOption("SQLite database", config.BackendSQLite),
					huh.NewOption("Folder of JSON files", config.BackendFolder),
				).Value(s.backend),
			huh.NewInput().Title("Data folder").Value(s.dataFolder),
		).Title("Storage").Description("Takes effect after a restart."))
	case settingsFormClearHistory:
		groups = append(groups, huh.NewGroup(
			huh.NewConfirm().
				Title("Clear all history?").
				Description("Tasks and the running entry are kept.").
				Affirmative("Clear").
				Negative("Cancel").
				Value(s.confirm),
		))
	case settingsFormClearAll:
		groups = append(groups, huh.NewGroup(
			huh.NewConfirm().
				Title("Delete all tasks and history?").
				Description("Timer settings and the storage location are kept.").
				Affirmative("Delete everything").
				Negative("Cancel").
				Value(s.confirm),
		))
	}

	s.form = huh.NewForm(groups...).WithShowHelp(true).WithShowErrors(true)
	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		return s, tea.Batch(s.submit(), s.refresh())
	}

	return s, cmd
}

func (s settingsModel) submit() tea.Cmd {
	switch s.formType {
	case settingsFormTimer:
		ts, err := s.timerFromForm()
		if err != nil {
			return errStatus(err)
		}
		c, err := s.tracker.UpdateTimerSettings(ts)
		if err != nil {
			return errStatus(err)
		}
		return commitCmd(c, "Timer settings saved")
	case settingsFormStorage:
		return s.saveStorage()
	case settingsFormClearHistory:
		if *s.confirm {
			return commitCmd(s.tracker.ClearHistory(), "History cleared")
		}
	case settingsFormClearAll:
		if *s.confirm {
			return commitCmd(s.tracker.ClearAllData(), "All tasks and history deleted")
		}
	}
	return nil
}

func (s settingsModel) timerFromForm() (store.TimerSettings, error) {
	rmin, err := parseMinutes(*s.reminderMin)
	if err != nil {
		return store.TimerSettings{}, err
	}
	tmin, err := parseMinutes(*s.timeoutMin)
	if err != nil {
		return store.TimerSettings{}, err
	}
	return store.TimerSettings{
		ReminderEnabled: *s.reminderOn,
		ReminderMinutes: rmin,
		TimeoutEnabled:  *s.timeoutOn,
		TimeoutMinutes:  tmin,
	}, nil
}

func (s settingsModel) saveStorage() tea.Cmd {
	if s.cfgPath == "" {
		return errStatus(errors.New("no config file"))
	}
	folder, err := config.ExpandPath(strings.TrimSpace(*s.dataFolder))
	if err != nil {
		return errStatus(err)
	}
	next := *s.cfg
	next.Backend = *s.backend
	next.DataFolder = folder
	if err := next.Validate(); err != nil {
		return errStatus(err)
	}
	if err := config.Save(&next, s.cfgPath); err != nil {
		return errStatus(err)
	}
	*s.cfg = next
	return func() tea.Msg {
		return statusMsg{text: "Storage saved. Restart tempo to apply."}
	}
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, subtitleStyle.Render("Timers"))
	rows = append(rows, s.row("Reminder", formatThreshold(s.timer.ReminderEnabled, s.timer.ReminderMinutes)))
	rows = append(rows, s.row("Timeout", formatThreshold(s.timer.TimeoutEnabled, s.timer.TimeoutMinutes)))
	rows = append(rows, "")
	rows = append(rows, subtitleStyle.Render("Storage"))

	if s.storage != nil {
		rows = append(rows, s.row("Storage", s.storage.String()))
		if s.storage.Degraded() {
			rows = append(rows, "  "+warningStyle.Render("Primary storage failed; using the fallback store."))
		}
	}
	if s.cfg != nil {
		rows = append(rows, s.row("Configured backend", s.cfg.Backend))
		if s.cfg.Backend == config.BackendFolder {
			rows = append(rows, s.row("Data folder", s.cfg.DataFolder))
		}
	}
	if s.cfgPath != "" {
		rows = append(rows, s.row("Config file", s.cfgPath))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: edit timers  o: storage  c: clear history  C: clear all"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (s settingsModel) row(label, value string) string {
	return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(22).Render(label), highlightStyle.Render(value))
}

func formatThreshold(enabled bool, minutes float64) string {
	if !enabled {
		return "off"
	}
	return formatMinutes(minutes) + " min"
}

func formatMinutes(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func parseMinutes(s string) (float64, error) {
	m, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("minutes must be a positive number, got %q", s)
	}
	if err := store.CheckMinutes(m); err != nil {
		return 0, fmt.Errorf("minutes %w", err)
	}
	return m, nil
}
