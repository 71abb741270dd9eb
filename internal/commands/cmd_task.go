package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/iojson"
)

// TaskInput is the JSON accepted by `workboard task add --file`.
type TaskInput struct {
	Title               string   `json:"title"`
	Priority            int      `json:"priority"`
	DependsOn           []string `json:"dependsOn"`
	Description         string   `json:"description"`
	Criteria            []string `json:"criteria"`
	Assignee            string   `json:"assignee"`
	RequiresHumanReview bool     `json:"requiresHumanReview"`
	Status              string   `json:"status"`
}

type TaskCmd struct {
	flags *Flags
	app   *workboard.App
	fr    *iojson.FileReader[TaskInput]

	// add flags
	in TaskInput

	dryRun  bool
	uncheck bool
}

func NewTaskCmd(flags *Flags, app *workboard.App) *TaskCmd {
	return &TaskCmd{flags: flags, app: app, fr: &iojson.FileReader[TaskInput]{}}
}

func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "task",
		Usage: "Create and change tasks",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create the next task of an item",
				UsageText: "workboard task add [options] <item> [title]",
				Description: `Creates a task file in the item's folder with the next free tid.

With --file the task is read from JSON instead of flags:

  {"title": "...", "priority": 1, "dependsOn": ["001"], "criteria": ["..."]}`,
				Flags: []cli.Flag{
					cmd.fr.Flag(),
					&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Usage: "priority (defaults to the tid)", Destination: &cmd.in.Priority},
					&cli.StringSliceFlag{Name: "depends-on", Usage: "tid this task depends on (repeatable)", Destination: &cmd.in.DependsOn},
					&cli.StringSliceFlag{Name: "criterion", Aliases: []string{"c"}, Usage: "acceptance criterion (repeatable)", Destination: &cmd.in.Criteria},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "task description", Destination: &cmd.in.Description},
					&cli.StringFlag{Name: "assignee", Usage: "worker name", Destination: &cmd.in.Assignee},
					&cli.BoolFlag{Name: "review", Usage: "require human review before done", Destination: &cmd.in.RequiresHumanReview},
					&cli.StringFlag{Name: "status", Usage: "initial status (plan, open)", Destination: &cmd.in.Status},
				},
				ShellComplete: ItemSlugCompleter(cmd.app),
				Action:        cmd.add,
			},
			{
				Name:          "status",
				Usage:         "Move a task to a status",
				UsageText:     "workboard task status [--dry-run] <source> <status>",
				Flags:         []cli.Flag{dryRunFlag(&cmd.dryRun)},
				ShellComplete: TaskSourceCompleter(cmd.app),
				Action:        cmd.setStatus,
			},
			{
				Name:          "assign",
				Usage:         "Assign a task to a worker and queue it for them",
				UsageText:     "workboard task assign <source> <worker>",
				ShellComplete: TaskSourceCompleter(cmd.app),
				Action:        cmd.assign,
			},
			{
				Name:      "check",
				Usage:     "Check or uncheck an acceptance criterion",
				UsageText: "workboard task check [--uncheck] <source> <index>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "uncheck", Usage: "clear the checkbox instead", Destination: &cmd.uncheck},
				},
				ShellComplete: TaskSourceCompleter(cmd.app),
				Action:        cmd.check,
			},
			{
				Name:          "rm",
				Usage:         "Delete a task file",
				UsageText:     "workboard task rm <source>",
				ShellComplete: TaskSourceCompleter(cmd.app),
				Action:        cmd.remove,
			},
		},
	})

	return app
}

func (cmd *TaskCmd) add(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("expected an item slug")
	}
	item := c.Args().Get(0)

	in := cmd.in
	if cmd.fr.Set() {
		var err error
		if in, err = cmd.fr.Read(); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	} else {
		if c.Args().Len() != 2 {
			return fmt.Errorf("expected 2 argument(s): item title")
		}
		in.Title = c.Args().Get(1)
	}

	spec := workdir.TaskSpec{
		Title:               in.Title,
		Priority:            in.Priority,
		DependsOn:           in.DependsOn,
		Description:         in.Description,
		Criteria:            in.Criteria,
		Assignee:            in.Assignee,
		RequiresHumanReview: in.RequiresHumanReview,
	}
	if in.Status != "" {
		status, err := backlog.ParseTaskStatus(in.Status, backlog.SchemaCurrent)
		if err != nil {
			return err
		}
		spec.Status = status
	}

	t, err := cmd.app.Backlog.AddTask(ctx, item, spec)
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("created %s", t.Source)
	return nil
}

func (cmd *TaskCmd) setStatus(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "source", "status")
	if err != nil {
		return err
	}
	status, err := backlog.ParseTaskStatus(a[1], backlog.SchemaCurrent)
	if err != nil {
		return err
	}

	cs, err := cmd.app.Backlog.ChangeTask(ctx, a[0], workdir.TaskChange{Status: status}, cmd.dryRun)
	if err != nil {
		return err
	}
	return printChange(printer.Ctx(ctx), cs, cmd.dryRun)
}

func (cmd *TaskCmd) assign(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "source", "worker")
	if err != nil {
		return err
	}
	if err := cmd.app.Workers.Assign(ctx, worker.Assignment{WorkerID: a[1], TaskID: a[0]}); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("assigned %s to %s", a[0], a[1])
	return nil
}

func (cmd *TaskCmd) check(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "source", "index")
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(a[1])
	if err != nil {
		return fmt.Errorf("index must be a number: %w", err)
	}

	cs, err := cmd.app.Backlog.ToggleCriterion(ctx, a[0], index, !cmd.uncheck)
	if err != nil {
		return err
	}
	return printChange(printer.Ctx(ctx), cs, false)
}

func (cmd *TaskCmd) remove(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "source")
	if err != nil {
		return err
	}
	if err := cmd.app.Backlog.DeleteTask(ctx, a[0]); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("deleted %s", a[0])
	return nil
}
