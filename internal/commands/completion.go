package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/workboard"
)

// ItemSlugCompleter returns a ShellCompleteFunc that suggests the slugs of
// items that are not done as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func ItemSlugCompleter(app *workboard.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if app.Backlog == nil {
			return
		}
		b, err := app.Backlog.Scan(ctx)
		if err != nil {
			return
		}

		w := cmd.Root().Writer
		for _, it := range b.Items {
			if it.Status == backlog.ItemDone {
				continue
			}
			_, _ = fmt.Fprintln(w, it.Slug)
		}
	}
}

// TaskSourceCompleter suggests the sources of tasks that are not done.
func TaskSourceCompleter(app *workboard.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if app.Backlog == nil {
			return
		}
		b, err := app.Backlog.Scan(ctx)
		if err != nil {
			return
		}

		w := cmd.Root().Writer
		for _, t := range b.Tasks {
			if t.Status == backlog.TaskDone {
				continue
			}
			_, _ = fmt.Fprintln(w, t.Source)
		}
	}
}
