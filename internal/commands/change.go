package commands

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/data/workdir"
	"github.com/colonyops/workboard/internal/printer"
)

// printChange reports a computed changeset: the diff for dry runs, the
// touched files otherwise.
func printChange(p *printer.Printer, cs workdir.Changeset, dryRun bool) error {
	if cs.Empty() {
		p.Infof("nothing to change")
		return nil
	}
	if dryRun {
		diff, err := cs.Diff()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprint(p.Writer(), diff)
		return nil
	}
	p.Successf("updated %s", strings.Join(cs.Files(), ", "))
	return nil
}

// args returns exactly n positional arguments or a usage error.
func args(c *cli.Command, names ...string) ([]string, error) {
	if c.Args().Len() != len(names) {
		return nil, fmt.Errorf("expected %d argument(s): %s", len(names), strings.Join(names, " "))
	}
	return c.Args().Slice(), nil
}

func dryRunFlag(dst *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "dry-run",
		Aliases:     []string{"n"},
		Usage:       "print the diff without writing",
		Destination: dst,
	}
}
