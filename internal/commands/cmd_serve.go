package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/logging"
	"github.com/colonyops/workboard/internal/httpapi"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
)

type ServeCmd struct {
	flags *Flags
	app   *workboard.App

	// flags
	addr  string
	watch bool
	pprof bool
}

func NewServeCmd(flags *Flags, app *workboard.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the backlog and worker board over HTTP",
		UsageText: "workboard serve [--addr host:port] [--watch]",
		Description: `Starts the JSON API used by the board UI and by remote workers.

With --watch, edits made to backlog files outside the server wake waiting
workers. The reservation sweep runs when reservations.sweep_interval is set.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides server.addr)",
				Sources:     cli.EnvVars("WORKBOARD_ADDR"),
				Destination: &cmd.addr,
			},
			&cli.BoolFlag{
				Name:        "watch",
				Usage:       "watch the work dir for external edits",
				Destination: &cmd.watch,
			},
			&cli.BoolFlag{
				Name:        "pprof",
				Usage:       "mount runtime profiling handlers under /debug/pprof/",
				Destination: &cmd.pprof,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cmd.app.Config
	if cmd.watch {
		cfg.Watch.Enabled = true
	}
	addr := cfg.Server.Addr
	if cmd.addr != "" {
		addr = cmd.addr
	}

	if err := cmd.app.Start(ctx); err != nil {
		return err
	}

	srv := httpapi.New(cmd.app, httpapi.Options{
		Addr:         addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Pprof:        cmd.pprof,
	}, logging.For(log.Logger, "http"))
	if err := srv.Start(ctx); err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	p.Successf("serving %s on http://%s", cmd.app.Dir.Root(), srv.Addr())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
