package commands

import (
	"context"
	"errors"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/iojson"
)

type ValidateCmd struct {
	flags  *Flags
	app    *workboard.App
	format string
	strict bool
}

func NewValidateCmd(flags *Flags, app *workboard.App) *ValidateCmd {
	return &ValidateCmd{flags: flags, app: app}
}

func (cmd *ValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "validate",
		Usage:     "Check the configuration and the backlog's cross links",
		UsageText: "workboard validate [--format text|json] [--strict]",
		Description: `Validates the configuration file, then parses every backlog file and
reports broken dependencies, duplicate ids, orphan tasks and parse failures.

Exits non-zero when errors are found, or warnings too with --strict.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "strict",
				Usage:       "treat warnings as errors",
				Destination: &cmd.strict,
			},
		},
		Action: cmd.run,
	})

	return app
}

type validateOutput struct {
	Valid  bool              `json:"valid"`
	Config map[string]string `json:"config,omitempty"`
	Report backlog.Report    `json:"report"`
	Failed []string          `json:"failed"`
}

func (cmd *ValidateCmd) run(ctx context.Context, c *cli.Command) error {
	out := validateOutput{Config: configErrors(cmd.app.Config.ValidateDeep(cmd.flags.ConfigPath))}

	b, err := cmd.app.Backlog.Scan(ctx)
	if err != nil {
		return err
	}
	out.Report = b.Report
	out.Failed = b.Failed
	out.Valid = len(out.Config) == 0 && b.Report.OK() && (!cmd.strict || len(b.Report.Warnings) == 0)

	if cmd.format == "json" {
		if err := iojson.WriteWith(c.Root().Writer, os.Stderr, out); err != nil {
			return err
		}
	} else {
		cmd.outputText(printer.Ctx(ctx), out)
	}

	if !out.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func configErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var fields criterio.FieldErrors
	if !errors.As(err, &fields) {
		return map[string]string{"config": err.Error()}
	}
	out := make(map[string]string, len(fields))
	for _, fe := range fields {
		out[fe.Field] = fe.Err.Error()
	}
	return out
}

func (cmd *ValidateCmd) outputText(p *printer.Printer, out validateOutput) {
	if len(out.Config) == 0 {
		p.Successf("configuration is valid")
	}
	for field, msg := range out.Config {
		p.Errorf("config %s: %s", field, msg)
	}

	for _, is := range out.Report.Errors {
		p.Errorf("%s: %s", is.Code, is.Message)
		if is.Source != "" {
			p.Printf("  %s", p.Styles().Muted.Render(is.Source))
		}
	}
	for _, is := range out.Report.Warnings {
		p.Warnf("%s: %s", is.Code, is.Message)
		if is.Source != "" {
			p.Printf("  %s", p.Styles().Muted.Render(is.Source))
		}
	}

	p.Printf("")
	if out.Valid {
		p.Successf("backlog is valid (%d warning(s))", len(out.Report.Warnings))
		return
	}
	p.Errorf("%d error(s), %d warning(s)", len(out.Report.Errors)+len(out.Config), len(out.Report.Warnings))
}
