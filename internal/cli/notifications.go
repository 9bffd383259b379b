package cli

import (
	"fmt"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/notifier"
)

type NotificationsCmd struct {
	Status  NotificationsStatusCmd  `cmd:"" help:"Show notification permission and agent status." default:"1"`
	Enable  NotificationsEnableCmd  `cmd:"" help:"Ask for notification permission with a test notification."`
	Disable NotificationsDisableCmd `cmd:"" help:"Stop showing reminder notifications."`
}

type NotificationsStatusCmd struct{}

func (c *NotificationsStatusCmd) Run(ctx *Context) error {
	fmt.Fprintf(ctx.out(), "Permission: %s\n", ctx.Prefs.GetPermission())
	if notifier.NewClient(ctx.Config.LockfilePath()).Available() {
		fmt.Fprintln(ctx.out(), "Agent: running")
	} else {
		fmt.Fprintln(ctx.out(), "Agent: not running (notifications shown by the foreground app)")
	}
	return nil
}

type NotificationsEnableCmd struct{}

func (c *NotificationsEnableCmd) Run(ctx *Context) error {
	sample := notifier.Build(constants.ShareTitle, func() string { return "Notifications are on" })

	state := constants.PermissionGranted
	if err := ctx.display().Show(sample); err != nil {
		logger.Warn("Test notification failed", "error", err)
		state = constants.PermissionDenied
	}

	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{})
	ctrl.Close()
	if err := ctrl.SetPermission(ctx.context(), state); err != nil {
		return err
	}

	if state == constants.PermissionDenied {
		fmt.Fprintln(ctx.out(), "Notifications are not available on this system. Reminders stay off.")
		return nil
	}
	fmt.Fprintln(ctx.out(), "Notifications enabled.")
	printEnabledSlots(ctx, ctrl.Reminders())
	return nil
}

type NotificationsDisableCmd struct{}

func (c *NotificationsDisableCmd) Run(ctx *Context) error {
	if err := ctx.Prefs.SavePermission(constants.PermissionDenied); err != nil {
		return err
	}
	fmt.Fprintln(ctx.out(), "Notifications disabled.")
	return nil
}

func printEnabledSlots(ctx *Context, cfg models.ReminderConfig) {
	shown := false
	for _, slot := range constants.Slots {
		if rs := cfg.Slot(slot); rs.Enabled {
			fmt.Fprintf(ctx.out(), "  %s at %s\n", slot, rs.Time)
			shown = true
		}
	}
	if !shown {
		fmt.Fprintln(ctx.out(), "No reminders are on yet: run 'affirm reminders set morning --enable'.")
	}
}
