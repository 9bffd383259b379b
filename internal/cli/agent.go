package cli

import (
	"fmt"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/dataset"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/notifier"
	"github.com/julianstephens/affirm/internal/pool"
)

// AgentCmd runs the background agent that shows notifications for foreground processes.
type AgentCmd struct{}

func (c *AgentCmd) Run(ctx *Context) error {
	mgr := ctx.Cache()
	defer mgr.Wait()
	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{foregroundOnly: true, cache: mgr})
	defer ctrl.Close()
	selector := pool.NewSelector(nil)

	srv := notifier.NewServer(notifier.AgentOptions{
		Lockfile: ctx.Config.LockfilePath(),
		Display:  ctx.display(),
		Body: func() string {
			data, ok, err := mgr.Body(ctx.context(), constants.DataResourcePath)
			if err != nil || !ok {
				return ctrl.RandomText()
			}
			ds, err := dataset.Parse(data)
			if err != nil {
				logger.Warn("Cached data resource unreadable", "error", err)
				return ctrl.RandomText()
			}
			a, _ := selector.Pick(ds.Affirmations, nil)
			return a.Text
		},
		OnReminders: func(cfg models.ReminderConfig) {
			logger.Info("Reminder settings updated",
				"morning", cfg.Morning.Time, "noon", cfg.Noon.Time, "evening", cfg.Evening.Time)
		},
	})

	fmt.Fprintf(ctx.out(), "Agent running (lockfile %s, cache %s). Press Ctrl+C to stop.\n",
		ctx.Config.LockfilePath(), mgr.State())
	return srv.Run(ctx.context())
}
