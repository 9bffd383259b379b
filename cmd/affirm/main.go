package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/affirm/internal/cli"
	"github.com/julianstephens/affirm/internal/config"
	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/errors"
	"github.com/julianstephens/affirm/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"Database path (*.json selects the JSON store)." type:"path" default:"${default_config}"`
	Settings string `help:"Settings file path." type:"path" default:"${default_settings}"`
	Debug    bool   `help:"Log debug output to stderr."`

	Init          cli.InitCmd          `cmd:"" help:"Initialize affirm storage."`
	Tui           cli.TuiCmd           `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Show          cli.ShowCmd          `cmd:"" help:"Print an affirmation."`
	Share         cli.ShareCmd         `cmd:"" help:"Share an affirmation."`
	Personal      cli.PersonalCmd      `cmd:"" help:"Manage personal affirmations."`
	Categories    cli.CategoriesCmd    `cmd:"" help:"Choose which categories affirmations come from."`
	Reminders     cli.RemindersCmd     `cmd:"" help:"Manage daily reminders."`
	Notifications cli.NotificationsCmd `cmd:"" help:"Manage notification permission."`
	Cache         cli.CacheCmd         `cmd:"" help:"Manage the offline cache."`
	Serve         cli.ServeCmd         `cmd:"" help:"Serve the application shell on localhost through the offline cache."`
	Agent         cli.AgentCmd         `cmd:"" help:"Run the background notification agent."`
	Backup        cli.BackupCmd        `cmd:"" help:"Manage backups of local data."`
	Doctor        cli.DoctorCmd        `cmd:"" help:"Run health checks and diagnostics."`
	Notify        cli.NotifyCmd        `cmd:"" hidden:"" help:"Run one reminder check (used by timers)."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Daily affirmations with offline support and reminders"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":          constants.Version,
			"default_config":   constants.DefaultConfigPath,
			"default_settings": constants.DefaultSettings,
		},
	)

	cfg, err := config.Load(CLI.Settings)
	if err != nil {
		errors.Fatal(err)
	}

	command := kctx.Command()
	prefix := constants.AppName
	if strings.HasPrefix(command, "agent") {
		prefix = constants.AppName + "-agent"
	}
	if err := logger.Init(logger.Config{Debug: CLI.Debug, Dir: cfg.LogDir, Process: prefix}); err != nil {
		errors.Fatal(err)
	}

	store := cli.NewStore(CLI.Config)
	defer store.Close()

	// Init handles its own loading
	if !strings.HasPrefix(command, "init") {
		if err := store.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(cli.NewContext(ctx, store, cfg))
	stop()
	store.Close()
	errors.Fatal(err)
}
