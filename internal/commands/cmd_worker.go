package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/logging"
	"github.com/colonyops/workboard/internal/core/validate"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/boardclient"
	"github.com/colonyops/workboard/pkg/executil"
	"github.com/colonyops/workboard/pkg/iojson"
)

type WorkerCmd struct {
	flags *Flags
	app   *workboard.App

	name       string
	role       string
	server     string
	limit      int
	jsonOutput bool
}

func NewWorkerCmd(flags *Flags, app *workboard.App) *WorkerCmd {
	return &WorkerCmd{flags: flags, app: app}
}

func (cmd *WorkerCmd) Register(app *cli.Command) *cli.Command {
	serverFlag := &cli.StringFlag{
		Name:        "server",
		Usage:       "workboard server URL (defaults to http://<server.addr>)",
		Sources:     cli.EnvVars("WORKBOARD_SERVER"),
		Destination: &cmd.server,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "worker",
		Usage: "Run and inspect workers",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a worker loop",
				UsageText: "workboard worker run --name <name> [--role role] [--server url] [-- command...]",
				Description: `Waits for actionable work, runs the agent command on it and reports back.

The agent command comes from workers.command unless given after --. It runs
in the backlog root with the task file on stdin and WORKBOARD_TASK and
WORKBOARD_ITEM set. Without --server the worker edits the backlog directly.`,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "worker name", Sources: cli.EnvVars("WORKBOARD_WORKER"), Required: true, Destination: &cmd.name},
					&cli.StringFlag{Name: "role", Usage: "worker role (planner picks up unassigned items)", Destination: &cmd.role},
					serverFlag,
				},
				Action: cmd.run,
			},
			{
				Name:      "ls",
				Usage:     "List workers known to a server",
				UsageText: "workboard worker ls [--server url] [--json]",
				Flags: []cli.Flag{
					serverFlag,
					&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
				},
				Action: cmd.list,
			},
			{
				Name:      "history",
				Usage:     "Show a worker's recorded events",
				UsageText: "workboard worker history [--limit n] <name>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "maximum number of events", Value: 20, Destination: &cmd.limit},
					&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.history,
			},
		},
	})

	return app
}

func (cmd *WorkerCmd) serverURL() string {
	if cmd.server != "" {
		return cmd.server
	}
	return "http://" + cmd.app.Config.Server.Addr
}

func (cmd *WorkerCmd) run(ctx context.Context, c *cli.Command) error {
	if err := validate.WorkerName(cmd.name); err != nil {
		return fmt.Errorf("name: %w", err)
	}

	command := c.Args().Slice()
	if len(command) == 0 {
		command = cmd.app.Config.Workers.Command
	}
	agent, err := worker.NewExecAgent(&executil.RealExecutor{}, cmd.app.Dir.Root(), command)
	if err != nil {
		return fmt.Errorf("%w (set workers.command or pass one after --)", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := worker.RunnerOptions{
		Name:     cmd.name,
		Role:     cmd.role,
		Poll:     cmd.app.Config.Workers.PollInterval,
		LogLines: cmd.app.Config.Workers.LogLines,
	}

	var board worker.Board
	if cmd.server != "" {
		board = boardclient.New(cmd.server, nil)
	} else {
		if err := cmd.app.Start(ctx); err != nil {
			return err
		}
		board = cmd.app.Board()
		opts.Trigger = cmd.app.Workers.Coordinator().Trigger()
	}

	printer.Ctx(ctx).Infof("worker %s started", worker.Key(cmd.name, cmd.role))
	runner := worker.NewRunner(logging.For(log.Logger, "runner"), board, agent, opts)
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (cmd *WorkerCmd) list(ctx context.Context, c *cli.Command) error {
	client := boardclient.New(cmd.serverURL(), nil)
	workers, err := client.Workers(ctx)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, workers)
	}
	if len(workers) == 0 {
		fmt.Fprintf(os.Stderr, "No workers have reported\n")
		return nil
	}

	st := printer.Ctx(ctx).Styles()
	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WORKER\tWORK\tLAST SEEN\tSTATUS")
	for _, s := range workers {
		work := s.TaskID
		if work == "" {
			work = s.ItemID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Key, orDash(work), s.LastSeen.Local().Format(time.DateTime), st.WorkerStatus(s.Status))
	}
	return w.Flush()
}

func (cmd *WorkerCmd) history(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "name")
	if err != nil {
		return err
	}

	events, err := cmd.app.Workers.History(ctx, a[0], cmd.limit)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		for _, e := range events {
			if err := iojson.WriteLine(out, e); err != nil {
				return err
			}
		}
		return nil
	}
	if len(events) == 0 {
		fmt.Fprintf(os.Stderr, "No history for %s\n", a[0])
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tKIND\tSTATUS\tWORK\tMESSAGE")
	for _, e := range events {
		work := e.TaskID
		if work == "" {
			work = e.ItemID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Kind, orDash(e.Status), orDash(work), e.Message)
	}
	return w.Flush()
}
