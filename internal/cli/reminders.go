package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
)

type RemindersCmd struct {
	Show RemindersShowCmd `cmd:"" help:"Show the reminder schedule." default:"1"`
	Set  RemindersSetCmd  `cmd:"" help:"Change one reminder slot."`
	Edit RemindersEditCmd `cmd:"" help:"Edit all reminder slots in a form."`
}

type RemindersShowCmd struct{}

func (c *RemindersShowCmd) Run(ctx *Context) error {
	cfg := ctx.Prefs.GetReminderConfig()
	sent := ctx.Prefs.GetSentLog()
	today := sent.Date == ctx.today()

	for _, slot := range constants.Slots {
		rs := cfg.Slot(slot)
		state := "off"
		if rs.Enabled {
			state = "on"
		}
		line := fmt.Sprintf("%-8s %s  %s", slot, rs.Time, state)
		if today && sent.IsSent(slot) {
			line += "  (sent today)"
		}
		fmt.Fprintln(ctx.out(), line)
	}
	fmt.Fprintf(ctx.out(), "Notifications: %s\n", ctx.Prefs.GetPermission())
	return nil
}

type RemindersSetCmd struct {
	Slot    string `arg:"" enum:"morning,noon,evening" help:"Reminder slot (morning, noon, evening)."`
	Time    string `short:"t" help:"Reminder time in HH:MM."`
	Enable  bool   `help:"Turn the slot on." xor:"toggle"`
	Disable bool   `help:"Turn the slot off." xor:"toggle"`
}

func (c *RemindersSetCmd) Run(ctx *Context) error {
	slot, err := models.ParseSlot(c.Slot)
	if err != nil {
		return err
	}
	if c.Time == "" && !c.Enable && !c.Disable {
		return errors.New("nothing to change: pass --time, --enable or --disable")
	}

	cfg := ctx.Prefs.GetReminderConfig()
	rs := cfg.Slot(slot)
	if c.Time != "" {
		if _, err := models.ParseMinutes(c.Time); err != nil {
			return err
		}
		rs.Time = c.Time
	}
	switch {
	case c.Enable:
		rs.Enabled = true
	case c.Disable:
		rs.Enabled = false
	}
	if err := cfg.SetSlot(slot, rs); err != nil {
		return err
	}

	if err := ctx.saveReminders(cfg); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Updated %s reminder: %s (%s)\n", slot, rs.Time, onOff(rs.Enabled))
	if rs.Enabled && ctx.Prefs.GetPermission() != constants.PermissionGranted {
		fmt.Fprintln(ctx.out(), "Reminders only fire once notifications are enabled: run 'affirm notifications enable'.")
	}
	return nil
}

type RemindersEditCmd struct{}

func (c *RemindersEditCmd) Run(ctx *Context) error {
	cfg := ctx.Prefs.GetReminderConfig()

	enabled := make(map[constants.Slot]*bool, len(constants.Slots))
	times := make(map[constants.Slot]*string, len(constants.Slots))
	var groups []*huh.Group
	for _, slot := range constants.Slots {
		rs := cfg.Slot(slot)
		on, at := rs.Enabled, rs.Time
		enabled[slot], times[slot] = &on, &at
		groups = append(groups, huh.NewGroup(
			huh.NewConfirm().
				Title(models.SlotTitle(slot)).
				Affirmative("On").
				Negative("Off").
				Value(enabled[slot]),
			huh.NewInput().
				Title("Time (HH:MM)").
				Value(times[slot]).
				Validate(func(s string) error {
					_, err := models.ParseMinutes(s)
					return err
				}),
		))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(ctx.out(), "No changes saved.")
			return nil
		}
		return err
	}

	for _, slot := range constants.Slots {
		if err := cfg.SetSlot(slot, models.ReminderSlot{Enabled: *enabled[slot], Time: *times[slot]}); err != nil {
			return err
		}
	}
	if err := ctx.saveReminders(cfg); err != nil {
		return err
	}
	fmt.Fprintln(ctx.out(), "Reminder schedule saved.")
	return nil
}

// saveReminders goes through the controller so a running agent hears about the change.
func (c *Context) saveReminders(cfg models.ReminderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctrl, _ := c.NewApp(c.context(), appOptions{})
	// Closed first: a one-shot command must not start polling.
	ctrl.Close()
	return ctrl.SaveReminders(c.context(), cfg)
}

func (c *Context) today() string {
	return c.now().Format(constants.DateFormat)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
