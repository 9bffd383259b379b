package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateToday:
		content = m.viewToday()
	case StatePersonal:
		content = m.viewPersonal()
	case StateReminders:
		content = m.viewReminders()
	case StateAdding:
		content = docStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			"New personal affirmation:",
			"",
			m.input.View(),
			"",
			mutedStyle.Render("enter to save, esc to cancel"),
		))
	case StateEditReminders:
		content = docStyle.Render(m.form.View())
	}

	var status string
	if m.status != "" {
		status = statusStyle.Render(m.status)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		content,
		status,
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	active := m.state
	switch m.state {
	case StateAdding:
		active = StatePersonal
	case StateEditReminders:
		active = StateReminders
	}

	var tabs []string
	for i, title := range tabTitles {
		if active == SessionState(i) {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewToday() string {
	st := m.ctrl.State()

	var cats []string
	for _, c := range m.ctrl.Categories() {
		name := m.ctrl.CategoryName(c)
		if c == st.Category {
			cats = append(cats, selectedStyle.Render("["+name+"]"))
		} else {
			cats = append(cats, mutedStyle.Render(name))
		}
	}

	text, badge := "", ""
	if st.Current != nil {
		text = st.Current.Text
		badge = badgeStyle.Render(m.ctrl.CategoryName(st.Current.Category))
	}

	width := 60
	if m.width > 0 && m.width-8 < width {
		width = max(m.width-8, 20)
	}

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		strings.Join(cats, " "),
		"",
		cardStyle.Width(width).Render(text),
		badge,
	))
}

func (m Model) viewPersonal() string {
	personal := m.ctrl.Personal()
	var b strings.Builder
	fmt.Fprintf(&b, "Personal affirmations (%d/%d)\n\n", len(personal), constants.MaxPersonalAffirmations)
	if len(personal) == 0 {
		b.WriteString(mutedStyle.Render("None yet. Press a to add one."))
	}
	for i, text := range personal {
		line := fmt.Sprintf("%2d. %s", i+1, text)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return docStyle.Render(b.String())
}

func (m Model) viewReminders() string {
	cfg := m.ctrl.Reminders()
	var b strings.Builder
	fmt.Fprintf(&b, "Notifications: %s\n\n", m.ctrl.Permission())
	for _, slot := range constants.Slots {
		b.WriteString(reminderLine(slot, cfg.Slot(slot)))
		b.WriteString("\n")
	}
	return docStyle.Render(b.String())
}

func reminderLine(slot constants.Slot, rs models.ReminderSlot) string {
	state := mutedStyle.Render("off")
	if rs.Enabled {
		state = selectedStyle.Render("on ")
	}
	return fmt.Sprintf("%-8s %s  %s", slot, state, rs.Time)
}
