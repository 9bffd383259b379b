package cli

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/affirm/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *Context) error {
	ctx.PerformAutomaticBackup()

	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{})
	defer ctrl.Close()
	ctrl.StartReminders(ctx.context())

	p := tea.NewProgram(tui.NewModel(ctx.context(), ctrl), tea.WithAltScreen(), tea.WithContext(ctx.context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
