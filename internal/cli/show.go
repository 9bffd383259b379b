package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/affirm/internal/app"
	"github.com/julianstephens/affirm/internal/constants"
)

var (
	affirmationStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	categoryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type ShowCmd struct {
	Category string `short:"c" help:"Category to draw from (all, personal or a category key)." default:"all"`
	Count    int    `short:"n" help:"Number of affirmations to show." default:"1"`
}

func (c *ShowCmd) Run(ctx *Context) error {
	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{foregroundOnly: true})
	defer ctrl.Close()

	if c.Category != constants.CategoryAll {
		if _, err := ctrl.SetCategory(c.Category); err != nil {
			return err
		}
	} else {
		ctrl.Next()
	}

	for i := 0; i < max(c.Count, 1); i++ {
		if i > 0 {
			ctrl.Next()
		}
		ctx.printCurrent(ctrl)
	}
	return nil
}

func (ctx *Context) printCurrent(ctrl *app.Controller) {
	st := ctrl.State()
	if st.Current == nil {
		return
	}
	name := ctrl.CategoryName(st.Current.Category)
	if !ctx.isTerminal() {
		fmt.Fprintf(ctx.out(), "%s\t%s\n", st.Current.Text, name)
		return
	}
	fmt.Fprintf(ctx.out(), "%s  %s\n", affirmationStyle.Render(st.Current.Text), categoryStyle.Render("("+name+")"))
}
