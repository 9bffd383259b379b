package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/affirm/internal/cache"
	"github.com/julianstephens/affirm/internal/logger"
)

// ServeCmd serves the application shell on localhost through the offline cache and keeps
// the reminder poll running while it is open.
type ServeCmd struct {
	Listen string `help:"Address to listen on (defaults to the configured listen address)."`
}

func (c *ServeCmd) Run(ctx *Context) error {
	if ctx.Config.OriginURL() == nil {
		return fmt.Errorf("%w: set origin in the settings file or AFFIRM_ORIGIN", cache.ErrNoOrigin)
	}
	addr := c.Listen
	if addr == "" {
		addr = ctx.Config.Listen
	}

	// The dataset load opens mgr; a failed install is not retried here.
	mgr := ctx.Cache()
	defer mgr.Wait()
	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{cache: mgr})
	defer ctrl.Close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mgr.Handler(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx.context())
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	ctrl.StartReminders(gctx)
	logger.Info("Serving application shell", "addr", ln.Addr().String(), "cache", mgr.State())
	fmt.Fprintf(ctx.out(), "Serving on http://%s (cache %s)\n", ln.Addr(), mgr.State())

	return g.Wait()
}
