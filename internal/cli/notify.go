package cli

import (
	"fmt"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/notifier"
)

// NotifyCmd runs a single reminder check. It is meant for cron or a system timer when no
// long-running affirm process is open.
type NotifyCmd struct {
	DryRun bool `help:"Print notifications to stdout instead of sending them."`
}

func (c *NotifyCmd) Run(ctx *Context) error {
	opts := appOptions{}
	if c.DryRun {
		opts = appOptions{display: notifier.WriterDisplay{W: ctx.out()}, foregroundOnly: true}
	}

	if ctx.Prefs.GetPermission() != constants.PermissionGranted {
		if c.DryRun {
			fmt.Fprintln(ctx.out(), "Notifications are not enabled.")
		}
		return nil
	}

	ctrl, sched := ctx.NewApp(ctx.context(), opts)
	defer ctrl.Close()
	ctrl.Next()

	fired, err := sched.Check(ctx.context(), ctx.now())
	if err != nil {
		return err
	}
	if c.DryRun && len(fired) == 0 {
		fmt.Fprintln(ctx.out(), "No reminders due.")
	}
	for _, slot := range fired {
		if c.DryRun {
			fmt.Fprintf(ctx.out(), "Sent %s reminder (%s)\n", slot, models.SlotTitle(slot))
		}
	}
	return nil
}
