package workboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/eventbus"
	"github.com/colonyops/workboard/internal/core/queue"
	"github.com/colonyops/workboard/internal/data/workdir"
)

const reasonExpired = "reservation expired"

// SweepExpired reverts every task whose reservation expired before now to
// open and clears its assignee. It returns the reverted sources.
func (s *BacklogService) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	return queue.Do(ctx, s.queue, func(ctx context.Context) ([]string, error) {
		doc, err := workdir.Load(s.dir, s.buildOptions())
		if err != nil {
			return nil, err
		}

		var reverted []string
		empty := ""
		for _, t := range doc.Model().Tasks {
			if t.ExpiresAt == nil || !t.ExpiresAt.Before(now) || t.Status == backlog.TaskDone {
				continue
			}
			cs, err := doc.ChangeTask(t.Source, workdir.TaskChange{
				Status:      backlog.TaskOpen,
				Assignee:    &empty,
				ClearExpiry: true,
			})
			if err == nil {
				err = doc.Commit(cs)
			}
			s.metrics.mutation("task.sweep", err)
			if err != nil {
				s.log.Warn().Err(err).Str("task", t.Source).Msg("failed to revert expired reservation")
				continue
			}

			reverted = append(reverted, t.Source)
			s.metrics.revert(reasonExpired)
			if s.bus != nil {
				s.bus.PublishTaskReverted(eventbus.TaskRevertedPayload{Source: t.Source, Reason: reasonExpired})
			}
		}

		if len(reverted) > 0 {
			s.committed(ctx, eventbus.ReasonSweep, "task.sweep", reverted)
		}
		return reverted, nil
	})
}

// StartSweep periodically reverts expired reservations. It blocks until the
// context is cancelled.
func StartSweep(ctx context.Context, svc *BacklogService, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reverted, err := svc.SweepExpired(ctx, now)
			if err != nil {
				log.Debug().Err(err).Msg("reservation sweep failed")
				continue
			}
			if len(reverted) > 0 {
				log.Info().Strs("tasks", reverted).Msg("reverted expired reservations")
			}
		}
	}
}
