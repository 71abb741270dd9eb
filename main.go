package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/workboard/internal/commands"
	"github.com/colonyops/workboard/internal/core/config"
	"github.com/colonyops/workboard/internal/core/eventbus"
	"github.com/colonyops/workboard/internal/core/logging"
	"github.com/colonyops/workboard/internal/core/styles"
	"github.com/colonyops/workboard/internal/data/db"
	"github.com/colonyops/workboard/internal/data/stores"
	"github.com/colonyops/workboard/internal/printer"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

// openDatabase opens the history database, moving a corrupt file aside and
// starting fresh once.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}
	dbLog := logging.For(log.Logger, "db")

	database, err := db.Open(cfg.DatabaseFile(), opts, dbLog)
	if err == nil || !stores.IsCorruptionError(err) {
		return database, err
	}

	backup, rerr := stores.RecoverFromCorruption(cfg.DatabaseFile())
	if rerr != nil {
		return nil, fmt.Errorf("%w (recovery failed: %v)", err, rerr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("history database was corrupt; starting a new one")
	return db.Open(cfg.DatabaseFile(), opts, dbLog)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		wbApp     = &workboard.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "workboard",
		Usage:     "Plan and run work from a markdown backlog",
		UsageText: "workboard [global options] command [command options]",
		Description: `Workboard keeps a backlog of work items and tasks as plain markdown files
and coordinates workers that pick them up.

Run 'workboard serve' to expose the backlog over HTTP.
Run 'workboard worker run --name <name>' to start a worker.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("WORKBOARD_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to a JSON log file (defaults to stderr)",
				Sources:     cli.EnvVars("WORKBOARD_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("WORKBOARD_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("WORKBOARD_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "root",
				Aliases:     []string{"r"},
				Usage:       "backlog root (overrides the configured root)",
				Sources:     cli.EnvVars("WORKBOARD_ROOT"),
				Destination: &flags.Root,
			},
			&cli.StringFlag{
				Name:        "theme",
				Usage:       "color theme for terminal output",
				Sources:     cli.EnvVars("WORKBOARD_THEME"),
				Value:       styles.DefaultTheme,
				Destination: &flags.Theme,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(logutils.Options{
				Level:   flags.LogLevel,
				File:    flags.LogFile,
				Console: styles.ColorEnabled(os.Stderr),
			})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if flags.Root != "" {
				cfg.Root = flags.Root
			}
			flags.Config = cfg

			var database *db.DB
			if cfg.HistoryEnabled() {
				database, err = openDatabase(cfg)
				if err != nil {
					return ctx, fmt.Errorf("open database: %w", err)
				}
			}

			bus := eventbus.New(256)
			built, err := workboard.NewApp(cfg, bus, database, log.Logger)
			if err != nil {
				if database != nil {
					_ = database.Close()
				}
				return ctx, err
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*wbApp = *built

			p := printer.New(os.Stdout, styles.ForFile(os.Stdout, flags.Theme))
			return printer.NewContext(ctx, p), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if err := wbApp.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close database")
				return err
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewServeCmd(flags, wbApp).Register(app)
	app = commands.NewLsCmd(flags, wbApp).Register(app)
	app = commands.NewValidateCmd(flags, wbApp).Register(app)
	app = commands.NewItemCmd(flags, wbApp).Register(app)
	app = commands.NewTaskCmd(flags, wbApp).Register(app)
	app = commands.NewManifestCmd(flags, wbApp).Register(app)
	app = commands.NewWorkerCmd(flags, wbApp).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
