package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/share"
)

func validateTime(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := models.ParseMinutes(s)
	return err
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case sharedMsg:
		switch {
		case msg.err != nil:
			m.status = "Share failed: " + msg.err.Error()
		case msg.method == share.MethodClipboard:
			m.status = "Copied to clipboard"
		case msg.method == share.MethodNative:
			m.status = "Shared"
		default:
			m.status = "Sharing unavailable, copy the text manually"
		}
		return m, nil
	}

	switch m.state {
	case StateAdding:
		return m.updateAdding(msg)
	case StateEditReminders:
		return m.updateEditReminders(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(keyMsg, m.keys.Tab):
		m.state = (m.state + 1) % SessionState(len(tabTitles))
		m.status = ""
		return m, nil
	case key.Matches(keyMsg, m.keys.ShiftTab):
		m.state = (m.state + SessionState(len(tabTitles)) - 1) % SessionState(len(tabTitles))
		m.status = ""
		return m, nil
	}

	switch m.state {
	case StateToday:
		return m.updateToday(keyMsg)
	case StatePersonal:
		return m.updatePersonal(keyMsg)
	case StateReminders:
		return m.updateReminders(keyMsg)
	}
	return m, nil
}

func (m Model) updateToday(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		m.ctrl.Next()
		m.status = ""
	case key.Matches(msg, m.keys.NextCat):
		m.cycleCategory(1)
	case key.Matches(msg, m.keys.PrevCat):
		m.cycleCategory(-1)
	case key.Matches(msg, m.keys.Share):
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			method, err := ctrl.Share(ctx)
			return sharedMsg{method: method, err: err}
		}
	}
	return m, nil
}

func (m *Model) cycleCategory(step int) {
	cats := m.ctrl.Categories()
	current := m.ctrl.State().Category
	idx := 0
	for i, c := range cats {
		if c == current {
			idx = i
			break
		}
	}
	idx = (idx + step + len(cats)) % len(cats)
	if _, err := m.ctrl.SetCategory(cats[idx]); err != nil {
		m.status = err.Error()
	}
}

func (m Model) updatePersonal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	personal := m.ctrl.Personal()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(personal)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Add):
		if len(personal) >= constants.MaxPersonalAffirmations {
			m.status = fmt.Sprintf("You can add up to %d personal affirmations", constants.MaxPersonalAffirmations)
			return m, nil
		}
		m.state = StateAdding
		m.input.Reset()
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		if len(personal) == 0 {
			return m, nil
		}
		if _, err := m.ctrl.RemovePersonal(m.cursor); err != nil {
			m.status = "Failed to delete: " + err.Error()
			return m, nil
		}
		if m.cursor >= len(personal)-1 && m.cursor > 0 {
			m.cursor--
		}
		m.status = "Deleted"
	}
	return m, nil
}

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEsc:
			m.input.Blur()
			m.state = StatePersonal
			return m, nil
		case tea.KeyEnter:
			if _, err := m.ctrl.AddPersonal(m.input.Value()); err != nil {
				m.status = err.Error()
				return m, nil
			}
			m.input.Blur()
			m.status = "Added"
			m.state = StatePersonal
			m.cursor = len(m.ctrl.Personal()) - 1
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateReminders(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Edit):
		m.form = m.newReminderForm()
		m.state = StateEditReminders
		return m, m.form.Init()
	case key.Matches(msg, m.keys.Permission):
		next := constants.PermissionGranted
		if m.ctrl.Permission() == constants.PermissionGranted {
			next = constants.PermissionDenied
		}
		if err := m.ctrl.SetPermission(m.ctx, next); err != nil {
			m.status = "Failed to update notifications: " + err.Error()
			return m, nil
		}
		m.status = "Notifications " + string(next)
	}
	return m, nil
}

func (m Model) updateEditReminders(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = StateReminders
		return m, nil
	}

	var cmds []tea.Cmd
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	cmds = append(cmds, cmd)

	switch m.form.State {
	case huh.StateCompleted:
		cfg := m.ctrl.Reminders()
		for _, slot := range constants.Slots {
			rs := models.ReminderSlot{Enabled: *m.reminderForm.Enabled[slot], Time: strings.TrimSpace(*m.reminderForm.Times[slot])}
			if err := cfg.SetSlot(slot, rs); err != nil {
				m.status = err.Error()
			}
		}
		if err := m.ctrl.SaveReminders(m.ctx, cfg); err != nil {
			m.status = "Failed to save reminders: " + err.Error()
		} else {
			m.status = "Reminders saved"
		}
		m.state = StateReminders
	case huh.StateAborted:
		m.state = StateReminders
	}
	return m, tea.Batch(cmds...)
}
