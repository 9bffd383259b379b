package cli

import (
	"fmt"
	"strings"
)

type CacheCmd struct {
	Status   CacheStatusCmd   `cmd:"" help:"Show the offline cache state and stored snapshots." default:"1"`
	Install  CacheInstallCmd  `cmd:"" help:"Download the application assets into a new snapshot."`
	Activate CacheActivateCmd `cmd:"" help:"Switch to this version's snapshot and delete older ones."`
}

type CacheStatusCmd struct{}

func (c *CacheStatusCmd) Run(ctx *Context) error {
	st, err := ctx.Cache().Status(ctx.context())
	if err != nil {
		return fmt.Errorf("failed to read cache status: %w", err)
	}
	origin := "(none, offline only)"
	if u := ctx.Config.OriginURL(); u != nil {
		origin = u.String()
	}
	fmt.Fprintf(ctx.out(), "Origin:    %s\n", origin)
	fmt.Fprintf(ctx.out(), "Version:   %s\n", st.Version)
	installed := "no"
	for _, name := range st.Snapshots {
		if name == st.Version {
			installed = "yes"
		}
	}
	fmt.Fprintf(ctx.out(), "Installed: %s\n", installed)
	if len(st.Snapshots) == 0 {
		fmt.Fprintln(ctx.out(), "Snapshots: none")
		return nil
	}
	fmt.Fprintf(ctx.out(), "Snapshots: %s\n", strings.Join(st.Snapshots, ", "))
	return nil
}

type CacheInstallCmd struct{}

func (c *CacheInstallCmd) Run(ctx *Context) error {
	mgr := ctx.Cache()
	if err := mgr.Install(ctx.context()); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Installed %s. Run 'affirm cache activate' to switch to it.\n", mgr.Version())
	return nil
}

type CacheActivateCmd struct{}

func (c *CacheActivateCmd) Run(ctx *Context) error {
	mgr := ctx.Cache()
	if err := mgr.Open(ctx.context()); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Active cache: %s\n", mgr.Version())
	return nil
}
