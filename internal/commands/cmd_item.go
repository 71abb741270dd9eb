package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
)

type ItemCmd struct {
	flags *Flags
	app   *workboard.App

	// add flags
	kind        string
	description string
	context     string
	status      string

	dryRun  bool
	archive bool
}

func NewItemCmd(flags *Flags, app *workboard.App) *ItemCmd {
	return &ItemCmd{flags: flags, app: app}
}

func (cmd *ItemCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "item",
		Usage: "Create and change work items",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a work item",
				UsageText: "workboard item add [options] <title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "conventional commit type (feat, fix, chore, ...)", Value: "feat", Destination: &cmd.kind},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "item description", Destination: &cmd.description},
					&cli.StringFlag{Name: "context", Usage: "background for whoever plans the item", Destination: &cmd.context},
					&cli.StringFlag{Name: "status", Usage: "initial status (plan, open)", Destination: &cmd.status},
				},
				Action: cmd.add,
			},
			{
				Name:          "status",
				Usage:         "Set an item's declared status",
				UsageText:     "workboard item status [--dry-run] <slug> <status>",
				Flags:         []cli.Flag{dryRunFlag(&cmd.dryRun)},
				ShellComplete: ItemSlugCompleter(cmd.app),
				Action:        cmd.setStatus,
			},
			{
				Name:          "assign",
				Usage:         "Claim an item for a worker",
				UsageText:     "workboard item assign <slug> <worker>",
				ShellComplete: ItemSlugCompleter(cmd.app),
				Action:        cmd.assign,
			},
			{
				Name:      "rm",
				Usage:     "Delete an item folder and its tasks",
				UsageText: "workboard item rm [--archive] <slug>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "archive", Usage: "move the folder to the archive dir instead of deleting it", Destination: &cmd.archive},
				},
				ShellComplete: ItemSlugCompleter(cmd.app),
				Action:        cmd.remove,
			},
		},
	})

	return app
}

func (cmd *ItemCmd) add(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "title")
	if err != nil {
		return err
	}

	spec := workdir.ItemSpec{
		Title:       a[0],
		Type:        cmd.kind,
		Description: cmd.description,
		Context:     cmd.context,
	}
	if cmd.status != "" {
		if spec.Status, err = backlog.ParseItemStatus(cmd.status, backlog.SchemaCurrent); err != nil {
			return err
		}
	}

	it, err := cmd.app.Backlog.AddItem(ctx, spec)
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("created %s", it.Source)
	return nil
}

func (cmd *ItemCmd) setStatus(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "slug", "status")
	if err != nil {
		return err
	}
	status, err := backlog.ParseItemStatus(a[1], backlog.SchemaCurrent)
	if err != nil {
		return err
	}

	cs, err := cmd.app.Backlog.ChangeItem(ctx, a[0], workdir.ItemChange{Status: status}, cmd.dryRun)
	if err != nil {
		return err
	}
	return printChange(printer.Ctx(ctx), cs, cmd.dryRun)
}

func (cmd *ItemCmd) assign(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "slug", "worker")
	if err != nil {
		return err
	}
	if err := cmd.app.Workers.Assign(ctx, worker.Assignment{WorkerID: a[1], ItemID: a[0]}); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("assigned %s to %s", a[0], a[1])
	return nil
}

func (cmd *ItemCmd) remove(ctx context.Context, c *cli.Command) error {
	a, err := args(c, "slug")
	if err != nil {
		return err
	}
	if err := cmd.app.Backlog.DeleteItem(ctx, a[0], cmd.archive); err != nil {
		return err
	}
	if cmd.archive {
		printer.Ctx(ctx).Successf("archived %s", a[0])
	} else {
		printer.Ctx(ctx).Successf("deleted %s", a[0])
	}
	return nil
}
