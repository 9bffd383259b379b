package cli

import (
	"fmt"
	"os"

	"github.com/julianstephens/affirm/internal/logger"
)

type InitCmd struct {
	Force   bool `help:"Force reset by deleting the existing database before initialization."`
	Install bool `help:"Install the offline cache for the configured origin."`
}

func (c *InitCmd) Run(ctx *Context) error {
	if c.Force {
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Fprintf(ctx.out(), "Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Initialized affirm storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Install {
		mgr := ctx.Cache()
		if err := mgr.Open(ctx.context()); err != nil {
			logger.Warn("Offline cache not installed", "error", err)
			fmt.Fprintf(ctx.out(), "Offline cache not installed: %v\n", err)
			return nil
		}
		fmt.Fprintf(ctx.out(), "Installed offline cache %s\n", mgr.Version())
	}
	return nil
}
