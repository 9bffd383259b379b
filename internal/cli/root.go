package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/julianstephens/affirm/internal/app"
	"github.com/julianstephens/affirm/internal/cache"
	"github.com/julianstephens/affirm/internal/config"
	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/dataset"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/notifier"
	"github.com/julianstephens/affirm/internal/pool"
	"github.com/julianstephens/affirm/internal/scheduler"
	"github.com/julianstephens/affirm/internal/share"
	"github.com/julianstephens/affirm/internal/storage"
)

type Context struct {
	Ctx     context.Context
	Store   storage.Provider
	Prefs   *storage.Preferences
	Config  config.Config
	Out     io.Writer
	Now     func() time.Time
	// Display overrides the desktop notification display.
	Display notifier.Display
}

func NewContext(ctx context.Context, store storage.Provider, cfg config.Config) *Context {
	return &Context{
		Ctx:    ctx,
		Store:  store,
		Prefs:  storage.NewPreferences(store),
		Config: cfg,
		Out:    os.Stdout,
	}
}

// NewStore picks the backend from the path: *.json uses the JSON document store, anything
// else SQLite.
func NewStore(path string) storage.Provider {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return storage.NewJSONStore(path)
	}
	return storage.NewSQLiteStore(path)
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// isTerminal reports whether output goes to an interactive terminal.
func (c *Context) isTerminal() bool {
	f, ok := c.out().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Context) display() notifier.Display {
	if c.Display == nil {
		return notifier.DesktopDisplay{}
	}
	return c.Display
}

func (c *Context) Cache() *cache.Manager {
	return cache.New(c.Store, cache.Options{
		Version: c.Config.CacheVersion,
		Origin:  c.Config.OriginURL(),
	})
}

// LoadDataset opens mgr (a new manager when nil) if an origin is configured and loads the
// data resource through it. It never fails. The caller waits on the returned manager.
func (c *Context) LoadDataset(ctx context.Context, mgr *cache.Manager) (models.Dataset, dataset.Source, *cache.Manager) {
	if mgr == nil {
		mgr = c.Cache()
	}
	loader := dataset.Loader{File: c.Config.DataFile}

	if origin := c.Config.OriginURL(); origin != nil {
		if err := mgr.Open(ctx); err != nil {
			logger.Warn("Offline cache unavailable", "error", err)
		}
		ref, _ := origin.Parse(constants.DataResourcePath)
		loader.URL = ref.String()
		loader.Client = mgr.Client(c.Config.FetchTimeout)
	}

	ds, src := loader.Load(ctx)
	logger.Debug("Loaded data resource", "source", src, "affirmations", len(ds.Affirmations))
	return ds, src, mgr
}

type appOptions struct {
	display notifier.Display
	// foregroundOnly skips the background agent.
	foregroundOnly bool
	// cache is reused instead of opening a second manager.
	cache *cache.Manager
}

// NewApp wires the controller with its scheduler, notifier and share chain.
func (c *Context) NewApp(ctx context.Context, opts appOptions) (*app.Controller, *scheduler.Scheduler) {
	ds, _, mgr := c.LoadDataset(ctx, opts.cache)
	defer mgr.Wait()

	display := opts.display
	if display == nil {
		display = c.display()
	}

	var ctrl *app.Controller
	fg := notifier.NewForeground(display, func() string { return ctrl.CurrentText() })

	client := notifier.NewClient(c.Config.LockfilePath())
	var agent notifier.Agent = client
	var advisor app.Advisor = client
	if opts.foregroundOnly {
		agent, advisor = nil, nil
	}

	sched := scheduler.New(c.Prefs, notifier.NewDelegating(agent, fg), scheduler.Options{
		Interval: c.Config.PollInterval,
		Window:   c.Config.MatchWindow,
		Now:      c.Now,
	})
	ctrl = app.New(app.Deps{
		Dataset:   ds,
		Prefs:     c.Prefs,
		Selector:  pool.NewSelector(nil),
		Reminders: sched,
		Advisor:   advisor,
		Sharer:    share.Sharer{Command: c.Config.ShareCommand, Out: c.out()},
	})
	return ctrl, sched
}
