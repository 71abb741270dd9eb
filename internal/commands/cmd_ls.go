package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/iojson"
)

type LsCmd struct {
	flags *Flags
	app   *workboard.App

	// flags
	jsonOutput bool
	all        bool
	item       string
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags, app *workboard.App) *LsCmd {
	return &LsCmd{flags: flags, app: app}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List work items and their tasks",
		UsageText: "workboard ls [--all] [--item slug] [--json]",
		Description: `Displays every item that is not done with its tasks, in file order.

Use --json for one JSON object per item, with its tasks inlined.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "all",
				Aliases:     []string{"a"},
				Usage:       "include done items",
				Destination: &cmd.all,
			},
			&cli.StringFlag{
				Name:        "item",
				Usage:       "only show the item with this slug or id",
				Destination: &cmd.item,
			},
		},
		Action: cmd.run,
	})

	return app
}

// itemInfo is the JSON output format for workboard ls --json.
type itemInfo struct {
	backlog.WorkItem
	TaskList []backlog.Task `json:"taskList"`
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	b, err := cmd.app.Backlog.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan backlog: %w", err)
	}

	var items []backlog.WorkItem
	for _, it := range b.Items {
		if cmd.item != "" && it.Slug != cmd.item && it.ID != cmd.item {
			continue
		}
		if !cmd.all && cmd.item == "" && it.Status == backlog.ItemDone {
			continue
		}
		items = append(items, it)
	}

	if len(items) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No work items found\n")
		}
		return nil
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, it := range items {
			if err := iojson.WriteLine(out, itemInfo{WorkItem: it, TaskList: b.TasksOf(it.Slug)}); err != nil {
				return fmt.Errorf("encode item: %w", err)
			}
		}
		return nil
	}

	st := printer.Ctx(ctx).Styles()

	// Status is the last column so color codes do not skew alignment.
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tASSIGNEE\tSTATUS")
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Slug, it.Title, orDash(it.Assignee), st.ItemStatus(it.Status))
		for _, t := range b.TasksOf(it.Slug) {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", t.TID, t.Name, orDash(t.Assignee), st.TaskStatus(t.Status))
		}
	}
	_ = w.Flush()

	if n := len(b.Report.Errors); n > 0 {
		fmt.Fprintf(os.Stderr, "\n%d backlog error(s); run 'workboard validate' for details\n", n)
	}

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
