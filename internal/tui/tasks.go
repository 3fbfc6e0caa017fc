package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/tempo/internal/store"
	"github.com/sadopc/tempo/internal/tracker"
)

type taskForm int

const (
	taskFormAdd taskForm = iota
	taskFormRename
	taskFormDelete
)

type tasksModel struct {
	tracker *tracker.Tracker
	width   int
	height  int

	tasks  []store.Task
	active *store.ActiveEntry
	cursor int

	formActive bool
	form       *huh.Form
	formType   taskForm

	// Form field pointers (survive value copies)
	formName    *string
	formConfirm *bool

	editingID string
}

func newTasksModel(t *tracker.Tracker) tasksModel {
	name, confirm := "", false
	return tasksModel{
		tracker:     t,
		formName:    &name,
		formConfirm: &confirm,
	}
}

func (p *tasksModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type tasksDataMsg struct {
	tasks  []store.Task
	active *store.ActiveEntry
}

func (p tasksModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return tasksDataMsg{tasks: p.tracker.Tasks(), active: p.tracker.ActiveEntry()}
	}
}

func (p tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tasksDataMsg); ok {
		p.tasks = msg.tasks
		p.active = msg.active
		if p.cursor >= len(p.tasks) {
			p.cursor = max(0, len(p.tasks)-1)
		}
		return p, nil
	}

	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return p.updateList(msg)
	}
	return p, nil
}

func (p tasksModel) updateList(msg tea.KeyMsg) (tasksModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.tasks)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Start):
		if len(p.tasks) > 0 {
			tr, c, err := p.tracker.StartTask(p.tasks[p.cursor].ID)
			if err != nil {
				return p, errStatus(err)
			}
			return p, tea.Batch(p.refresh(), commitCmd(c, "Started "+tr.Entry.TaskName))
		}
	case key.Matches(msg, keys.Stop):
		if len(p.tasks) > 0 {
			if _, ok, c := p.tracker.StopTask(p.tasks[p.cursor].ID); ok {
				return p, tea.Batch(p.refresh(), commitCmd(c, "Stopped "+p.tasks[p.cursor].Name))
			}
		}
	case key.Matches(msg, keys.New):
		return p.showForm(taskFormAdd)
	case key.Matches(msg, keys.Rename):
		if len(p.tasks) > 0 {
			return p.showForm(taskFormRename)
		}
	case key.Matches(msg, keys.Delete):
		if len(p.tasks) > 0 {
			return p.showForm(taskFormDelete)
		}
	}
	return p, nil
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("name is required")
	}
	return nil
}

func (p tasksModel) showForm(kind taskForm) (tasksModel, tea.Cmd) {
	p.formType = kind
	*p.formName = ""
	*p.formConfirm = false
	p.editingID = ""
	if kind != taskFormAdd {
		task := p.tasks[p.cursor]
		p.editingID = task.ID
		*p.formName = task.Name
	}

	var group *huh.Group
	switch kind {
	case taskFormDelete:
		desc := "Its history is kept."
		if p.active != nil && p.active.TaskID == p.editingID {
			desc = "It is running and will be stopped first. Its history is kept."
		}
		group = huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", *p.formName)).
				Description(desc).
				Affirmative("Delete").
				Negative("Cancel").
				Value(p.formConfirm),
		)
	default:
		group = huh.NewGroup(
			huh.NewInput().Title("Task Name").Value(p.formName).Validate(validateName),
		)
	}

	p.form = huh.NewForm(group).WithShowHelp(true).WithShowErrors(true)
	p.formActive = true
	return p, p.form.Init()
}

func (p tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		return p, tea.Batch(p.submit(), p.refresh())
	}

	return p, cmd
}

func (p tasksModel) submit() tea.Cmd {
	switch p.formType {
	case taskFormAdd:
		task, c, err := p.tracker.AddTask(*p.formName)
		if err != nil {
			return errStatus(err)
		}
		return commitCmd(c, "Added "+task.Name)
	case taskFormRename:
		c, err := p.tracker.RenameTask(p.editingID, *p.formName)
		if err != nil {
			return errStatus(err)
		}
		return commitCmd(c, "Renamed to "+strings.TrimSpace(*p.formName))
	case taskFormDelete:
		if !*p.formConfirm {
			return nil
		}
		c, err := p.tracker.DeleteTask(p.editingID)
		if err != nil {
			return errStatus(err)
		}
		return commitCmd(c, "Deleted "+*p.formName)
	}
	return nil
}

func (p tasksModel) view() string {
	if p.formActive && p.form != nil {
		title := titleStyle.Render("New Task")
		switch p.formType {
		case taskFormRename:
			title = titleStyle.Render("Rename Task")
		case taskFormDelete:
			title = titleStyle.Render("Delete Task")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", p.form.View())
		return panelStyle.Width(p.width - 4).Render(content)
	}
	return p.renderList()
}

func (p tasksModel) renderList() string {
	w := p.width - 4
	title := titleStyle.Render("Tasks")

	if len(p.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, task := range p.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		row := style.Render(cursor + task.Name)
		if p.active != nil && p.active.TaskID == task.ID {
			row += successStyle.Render("  ● running")
		}
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  r: rename  d: delete  enter: start  x: stop"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
