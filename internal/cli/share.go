package cli

import (
	"fmt"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/share"
)

type ShareCmd struct {
	Category string `short:"c" help:"Category to draw from." default:"all"`
}

func (c *ShareCmd) Run(ctx *Context) error {
	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{foregroundOnly: true})
	defer ctrl.Close()

	if c.Category != constants.CategoryAll {
		if _, err := ctrl.SetCategory(c.Category); err != nil {
			return err
		}
	} else {
		ctrl.Next()
	}

	method, err := ctrl.Share(ctx.context())
	if err != nil {
		return err
	}
	switch method {
	case share.MethodNative:
		fmt.Fprintln(ctx.out(), "Shared.")
	case share.MethodClipboard:
		fmt.Fprintln(ctx.out(), "Copied to clipboard.")
	}
	return nil
}
