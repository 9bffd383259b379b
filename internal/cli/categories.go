package cli

import (
	"fmt"
	"strings"
)

type CategoriesCmd struct {
	List   CategoriesListCmd   `cmd:"" help:"List categories and whether they are enabled." default:"1"`
	Enable CategoriesEnableCmd `cmd:"" help:"Restrict built-in affirmations to the given categories."`
	Reset  CategoriesResetCmd  `cmd:"" help:"Enable every category again."`
}

type CategoriesListCmd struct{}

func (c *CategoriesListCmd) Run(ctx *Context) error {
	ds, src, mgr := ctx.LoadDataset(ctx.context(), nil)
	defer mgr.Wait()
	enabled := ctx.Prefs.GetEnabledCategories()

	for _, key := range ds.CategoryKeys() {
		mark := " "
		if enabled.Allows(key) {
			mark = "✓"
		}
		fmt.Fprintf(ctx.out(), "[%s] %-12s %s\n", mark, key, ds.CategoryName(key))
	}
	if enabled.All() {
		fmt.Fprintln(ctx.out(), "All categories enabled.")
	}
	fmt.Fprintf(ctx.out(), "Data source: %s\n", src)
	return nil
}

type CategoriesEnableCmd struct {
	Keys []string `arg:"" help:"Category keys to enable."`
}

func (c *CategoriesEnableCmd) Run(ctx *Context) error {
	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{foregroundOnly: true})
	defer ctrl.Close()

	if err := ctrl.SetEnabledCategories(c.Keys); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Enabled categories: %s\n", strings.Join(c.Keys, ", "))
	return nil
}

type CategoriesResetCmd struct{}

func (c *CategoriesResetCmd) Run(ctx *Context) error {
	if err := ctx.Prefs.SaveEnabledCategories(nil); err != nil {
		return err
	}
	fmt.Fprintln(ctx.out(), "All categories enabled.")
	return nil
}
