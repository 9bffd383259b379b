// Package tui is the interactive terminal front end.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/affirm/internal/app"
	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/share"
)

type SessionState int

const (
	StateToday SessionState = iota
	StatePersonal
	StateReminders
	StateAdding
	StateEditReminders
)

var tabTitles = []string{"Today", "Personal", "Reminders"}

// ReminderFormModel holds the values bound to the reminder form fields.
type ReminderFormModel struct {
	Enabled map[constants.Slot]*bool
	Times   map[constants.Slot]*string
}

type sharedMsg struct {
	method share.Method
	err    error
}

type Model struct {
	ctx          context.Context
	ctrl         *app.Controller
	state        SessionState
	keys         KeyMap
	help         help.Model
	input        textinput.Model
	form         *huh.Form
	reminderForm *ReminderFormModel
	cursor       int
	status       string
	quitting     bool
	width        int
	height       int
}

func NewModel(ctx context.Context, ctrl *app.Controller) Model {
	ti := textinput.New()
	ti.Placeholder = "Write your own affirmation"
	ti.CharLimit = constants.MaxAffirmationLength
	ti.Width = 50

	if ctrl.CurrentText() == "" {
		ctrl.Next()
	}

	return Model{
		ctx:   ctx,
		ctrl:  ctrl,
		state: StateToday,
		keys:  DefaultKeyMap(),
		help:  help.New(),
		input: ti,
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case StateToday:
		keys = append(keys, m.keys.Next, m.keys.NextCat, m.keys.Share)
	case StatePersonal:
		keys = append(keys, m.keys.Add, m.keys.Delete)
	case StateReminders:
		keys = append(keys, m.keys.Edit, m.keys.Permission)
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help}

	var actions []key.Binding
	switch m.state {
	case StateToday:
		actions = []key.Binding{m.keys.Next, m.keys.PrevCat, m.keys.NextCat, m.keys.Share}
	case StatePersonal:
		actions = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Add, m.keys.Delete}
	case StateReminders:
		actions = []key.Binding{m.keys.Edit, m.keys.Permission}
	}
	return [][]key.Binding{global, actions}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) newReminderForm() *huh.Form {
	cfg := m.ctrl.Reminders()
	m.reminderForm = &ReminderFormModel{
		Enabled: map[constants.Slot]*bool{},
		Times:   map[constants.Slot]*string{},
	}

	var groups []*huh.Group
	for _, slot := range constants.Slots {
		rs := cfg.Slot(slot)
		enabled, at := rs.Enabled, rs.Time
		m.reminderForm.Enabled[slot] = &enabled
		m.reminderForm.Times[slot] = &at
		groups = append(groups, huh.NewGroup(
			huh.NewConfirm().
				Title(string(slot)+" reminder").
				Value(m.reminderForm.Enabled[slot]),
			huh.NewInput().
				Title("Time (HH:MM)").
				Value(m.reminderForm.Times[slot]).
				Validate(validateTime),
		))
	}
	return huh.NewForm(groups...)
}
