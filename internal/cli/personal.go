package cli

import (
	"fmt"

	"github.com/julianstephens/affirm/internal/constants"
)

type PersonalCmd struct {
	Add    PersonalAddCmd    `cmd:"" help:"Add a personal affirmation."`
	List   PersonalListCmd   `cmd:"" help:"List personal affirmations." default:"1"`
	Remove PersonalRemoveCmd `cmd:"" help:"Remove a personal affirmation by its number."`
}

type PersonalAddCmd struct {
	Text string `arg:"" help:"Affirmation text (up to 200 characters)."`
}

func (c *PersonalAddCmd) Run(ctx *Context) error {
	text, err := ctx.Prefs.AddPersonal(c.Text)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Added: %s\n", text)
	return nil
}

type PersonalListCmd struct{}

func (c *PersonalListCmd) Run(ctx *Context) error {
	personal := ctx.Prefs.GetPersonal()
	if len(personal) == 0 {
		fmt.Fprintln(ctx.out(), "No personal affirmations yet.")
		return nil
	}
	for i, text := range personal {
		fmt.Fprintf(ctx.out(), "%2d. %s\n", i+1, text)
	}
	fmt.Fprintf(ctx.out(), "(%d/%d)\n", len(personal), constants.MaxPersonalAffirmations)
	return nil
}

type PersonalRemoveCmd struct {
	Number int `arg:"" help:"Number shown by 'affirm personal list'."`
}

func (c *PersonalRemoveCmd) Run(ctx *Context) error {
	removed, err := ctx.Prefs.RemovePersonal(c.Number - 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Removed: %s\n", removed)
	return nil
}
