package workboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/workboard/internal/core/config"
	"github.com/colonyops/workboard/internal/core/eventbus"
	"github.com/colonyops/workboard/internal/core/logging"
	"github.com/colonyops/workboard/internal/core/queue"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/db"
	"github.com/colonyops/workboard/internal/data/stores"
	"github.com/colonyops/workboard/internal/data/workdir"
)

// App is the central entry point for all workboard operations.
// Commands and the HTTP layer consume App instead of cherry-picking raw
// dependencies.
type App struct {
	Backlog *BacklogService
	Workers *WorkerService

	Config  *config.Config
	Dir     *workdir.Dir
	Bus     *eventbus.EventBus
	Metrics *Metrics
	Queues  *queue.Registry
	// DB is nil when worker history is disabled.
	DB *db.DB

	history *stores.HistoryStore
	log     zerolog.Logger
}

// NewApp constructs an App from explicit dependencies. database may be nil.
func NewApp(cfg *config.Config, bus *eventbus.EventBus, database *db.DB, log zerolog.Logger) (*App, error) {
	dir, err := workdir.Open(cfg.Root, workdir.Options{
		WorkDir:    cfg.WorkDir,
		ArchiveDir: cfg.Archive.Dir,
		Ignore:     cfg.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("open backlog: %w", err)
	}

	metrics := NewMetrics()
	queues := queue.NewRegistry(logging.For(log, "queue"), metrics.ObserveQueue)

	backlogSvc := NewBacklogService(
		dir,
		queues.For(dir.Root()),
		bus,
		metrics,
		logging.For(log, "backlog"),
		BacklogOptions{Manifest: cfg.ManifestEnabled()},
	)

	var (
		history      worker.History
		historyStore *stores.HistoryStore
	)
	if database != nil {
		historyStore = stores.NewHistoryStore(database)
		history = historyStore
	}

	workers := NewWorkerService(
		worker.NewCoordinator(cfg.Workers.LogLines),
		backlogSvc,
		history,
		bus,
		metrics,
		logging.For(log, "workers"),
		cfg.Workers.ReservationTTL,
	)

	if bus != nil {
		eventbus.RegisterDebugLogger(bus, logging.For(log, "eventbus"))
		eventbus.RegisterWaker(bus, workers.Coordinator())
	}

	return &App{
		Backlog: backlogSvc,
		Workers: workers,
		Config:  cfg,
		Dir:     dir,
		Bus:     bus,
		Metrics: metrics,
		Queues:  queues,
		DB:      database,
		history: historyStore,
		log:     log,
	}, nil
}

// Board returns the worker board for runners inside this process.
func (a *App) Board() worker.Board {
	return NewLocalBoard(a.Workers)
}

// Start prunes old worker history and launches the background loops: event
// dispatch, the file watcher and the reservation sweep, as configured. The
// loops stop when ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.history != nil && a.Config.History.Retention > 0 {
		cutoff := time.Now().Add(-a.Config.History.Retention)
		n, err := a.history.Prune(ctx, cutoff)
		if err != nil {
			a.log.Warn().Err(err).Msg("prune worker history")
		} else if n > 0 {
			a.log.Info().Int64("removed", n).Msg("pruned worker history")
		}
	}

	if a.Bus != nil {
		go a.Bus.Start(ctx)
	}

	if a.Config.Watch.Enabled {
		w, err := workdir.NewWatcher(a.Dir, a.Config.Watch.Debounce, a.log)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		go func() {
			err := w.Run(ctx, func(sources []string) {
				if a.Bus == nil {
					a.Workers.Coordinator().Notify()
					return
				}
				a.Bus.PublishBacklogChanged(eventbus.BacklogChangedPayload{
					Root:    a.Dir.Root(),
					Reason:  eventbus.ReasonExternal,
					Sources: sources,
				})
			})
			if err != nil {
				a.log.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	if interval := a.Config.Reservations.SweepInterval; interval > 0 {
		go StartSweep(ctx, a.Backlog, interval, logging.For(a.log, "sweep"))
	}

	return nil
}

// Close releases the database, if any.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
