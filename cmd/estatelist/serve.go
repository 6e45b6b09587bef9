package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	html "github.com/gofiber/template/html/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"estatelist/internal/api"
	"estatelist/internal/http/handlers"
	applog "estatelist/internal/log"
	"estatelist/internal/repos"
	"estatelist/internal/services"
)

const purgeEvery = time.Hour

func newServeCmd(cl *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cl.serve(ctx)
		},
	}
}

func (cl *cli) serve(ctx context.Context) error {
	cfg := cl.cfg
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Templates & app
	engine := html.New(cfg.TemplatesDir, ".html")
	engine.Reload(true)

	deps := handlers.NewDeps(db, cfg, api.NewClient(cfg.APIURL, cfg.APITimeout))
	app := handlers.NewApp(handlers.AppOptions{
		Views:     engine,
		StaticDir: cfg.StaticDir,
		AccessLog: true,
		LogOutput: cl.logOut,
	}, deps)

	log.Printf("[static] /static -> %s", cfg.StaticDir)
	log.Printf("[api] backend -> %s", cfg.APIURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(5 * time.Second)
	})
	g.Go(func() error {
		purgeLoop(gctx, deps.Views, cfg.SessionMaxIdle)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// purgeLoop drops idle view sessions until ctx is done.
func purgeLoop(ctx context.Context, views *services.ViewService, maxIdle time.Duration) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := views.PurgeIdle(maxIdle)
			if err != nil {
				applog.ErrorCtx(ctx, "session.purge.fail", err, nil)
				continue
			}
			if n > 0 {
				applog.InfoCtx(ctx, "session.purge", map[string]any{"removed": n})
			}
		}
	}
}
