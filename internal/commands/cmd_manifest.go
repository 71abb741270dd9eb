package commands

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/iojson"
)

type ManifestCmd struct {
	flags *Flags
	app   *workboard.App
	print bool
}

func NewManifestCmd(flags *Flags, app *workboard.App) *ManifestCmd {
	return &ManifestCmd{flags: flags, app: app}
}

func (cmd *ManifestCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "manifest",
		Usage:       "Rewrite the work dir's manifest.json",
		UsageText:   "workboard manifest [--print]",
		Description: "Regenerates manifest.json from the backlog. The server rewrites it after every change when manifest.enabled is set.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "print",
				Usage:       "also print the manifest",
				Destination: &cmd.print,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ManifestCmd) run(ctx context.Context, c *cli.Command) error {
	m, err := cmd.app.Backlog.WriteManifest(ctx)
	if err != nil {
		return err
	}
	if cmd.print {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, m)
	}
	printer.Ctx(ctx).Successf("wrote manifest with %d item(s), %d open", len(m.Items), m.OpenItemCount)
	return nil
}
