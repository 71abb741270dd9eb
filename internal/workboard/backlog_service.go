// Package workboard holds the application services that sit between the
// transports (HTTP, CLI, in-process workers) and the document engine.
package workboard

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/eventbus"
	"github.com/colonyops/workboard/internal/core/queue"
	"github.com/colonyops/workboard/internal/data/workdir"
)

// BacklogOptions configures a BacklogService.
type BacklogOptions struct {
	// Manifest rewrites work/manifest.json after every committed mutation.
	Manifest bool
	Now      func() time.Time
}

// BacklogService reads the backlog and routes every mutation through the
// root's operation queue. Reads never wait on the queue.
type BacklogService struct {
	dir     *workdir.Dir
	queue   *queue.Queue
	bus     *eventbus.EventBus
	metrics *Metrics
	log     zerolog.Logger
	opts    BacklogOptions
}

// NewBacklogService creates a BacklogService. bus and metrics may be nil.
func NewBacklogService(
	dir *workdir.Dir,
	q *queue.Queue,
	bus *eventbus.EventBus,
	metrics *Metrics,
	log zerolog.Logger,
	opts BacklogOptions,
) *BacklogService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BacklogService{
		dir:     dir,
		queue:   q,
		bus:     bus,
		metrics: metrics,
		log:     log,
		opts:    opts,
	}
}

// Dir returns the work dir the service operates on.
func (s *BacklogService) Dir() *workdir.Dir {
	return s.dir
}

func (s *BacklogService) buildOptions() backlog.BuildOptions {
	return backlog.BuildOptions{Now: s.opts.Now()}
}

// Scan rebuilds the model from disk.
func (s *BacklogService) Scan(ctx context.Context) (backlog.Backlog, error) {
	if err := ctx.Err(); err != nil {
		return backlog.Backlog{}, err
	}
	return s.dir.Scan(s.buildOptions())
}

// ReadFile returns the raw text of a file in the work dir.
func (s *BacklogService) ReadFile(ctx context.Context, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.dir.ReadFile(source)
}

// ChangeTask updates a task's front matter. With dryRun the changeset is
// computed and returned without writing.
func (s *BacklogService) ChangeTask(ctx context.Context, source string, ch workdir.TaskChange, dryRun bool) (workdir.Changeset, error) {
	return s.change(ctx, "task.change", dryRun, func(doc *workdir.Document) (workdir.Changeset, error) {
		return doc.ChangeTask(source, ch)
	})
}

// ChangeItem updates an item's front matter.
func (s *BacklogService) ChangeItem(ctx context.Context, key string, ch workdir.ItemChange, dryRun bool) (workdir.Changeset, error) {
	return s.change(ctx, "item.change", dryRun, func(doc *workdir.Document) (workdir.Changeset, error) {
		return doc.ChangeItem(key, ch)
	})
}

// ToggleCriterion checks or unchecks one acceptance criterion.
func (s *BacklogService) ToggleCriterion(ctx context.Context, source string, index int, checked bool) (workdir.Changeset, error) {
	return s.change(ctx, "task.criterion", false, func(doc *workdir.Document) (workdir.Changeset, error) {
		return doc.ToggleCriterion(source, index, checked)
	})
}

// ReplaceContent overwrites a whole file.
func (s *BacklogService) ReplaceContent(ctx context.Context, source, text string) (workdir.Changeset, error) {
	return s.change(ctx, "file.replace", false, func(doc *workdir.Document) (workdir.Changeset, error) {
		return doc.ReplaceContent(source, text)
	})
}

// change loads a fresh document inside the queue, computes a changeset and
// commits it unless dryRun is set.
func (s *BacklogService) change(
	ctx context.Context,
	op string,
	dryRun bool,
	compute func(doc *workdir.Document) (workdir.Changeset, error),
) (workdir.Changeset, error) {
	return queue.Do(ctx, s.queue, func(ctx context.Context) (workdir.Changeset, error) {
		doc, err := workdir.Load(s.dir, s.buildOptions())
		if err != nil {
			return workdir.Changeset{}, err
		}
		cs, err := compute(doc)
		if err != nil {
			return workdir.Changeset{}, err
		}
		if dryRun || cs.Empty() {
			return cs, nil
		}

		err = doc.Commit(cs)
		s.metrics.mutation(op, err)
		if err != nil {
			if errors.Is(err, workdir.ErrStalePatch) {
				s.log.Warn().Err(err).Str("op", op).Msg("commit rejected, file changed on disk")
			}
			return workdir.Changeset{}, err
		}

		s.committed(ctx, eventbus.ReasonMutation, op, cs.Files())
		return cs, nil
	})
}

// AddItem creates a new item folder.
func (s *BacklogService) AddItem(ctx context.Context, spec workdir.ItemSpec) (backlog.WorkItem, error) {
	return queue.Do(ctx, s.queue, func(ctx context.Context) (backlog.WorkItem, error) {
		it, err := s.dir.AddItem(spec)
		s.metrics.mutation("item.add", err)
		if err != nil {
			return backlog.WorkItem{}, err
		}
		s.committed(ctx, eventbus.ReasonMutation, "item.add", []string{it.Source})
		return it, nil
	})
}

// AddTask creates the next task of an item.
func (s *BacklogService) AddTask(ctx context.Context, itemSlug string, spec workdir.TaskSpec) (backlog.Task, error) {
	return queue.Do(ctx, s.queue, func(ctx context.Context) (backlog.Task, error) {
		t, err := s.dir.AddTask(itemSlug, spec)
		s.metrics.mutation("task.add", err)
		if err != nil {
			return backlog.Task{}, err
		}
		s.committed(ctx, eventbus.ReasonMutation, "task.add", []string{t.Source})
		return t, nil
	})
}

// DeleteTask removes a task file and its feedback companion.
func (s *BacklogService) DeleteTask(ctx context.Context, source string) error {
	return s.queue.Enqueue(ctx, func(ctx context.Context) error {
		err := s.dir.DeleteTask(source)
		s.metrics.mutation("task.delete", err)
		if err != nil {
			return err
		}
		s.committed(ctx, eventbus.ReasonMutation, "task.delete", []string{source})
		return nil
	})
}

// DeleteItem removes or archives an item folder.
func (s *BacklogService) DeleteItem(ctx context.Context, slug string, archive bool) error {
	return s.queue.Enqueue(ctx, func(ctx context.Context) error {
		err := s.dir.DeleteItem(slug, archive)
		s.metrics.mutation("item.delete", err)
		if err != nil {
			return err
		}
		s.committed(ctx, eventbus.ReasonMutation, "item.delete", []string{s.dir.WorkDir() + "/" + slug})
		return nil
	})
}

// WriteManifest regenerates the manifest on demand.
func (s *BacklogService) WriteManifest(ctx context.Context) (backlog.Manifest, error) {
	return queue.Do(ctx, s.queue, func(ctx context.Context) (backlog.Manifest, error) {
		b, err := s.dir.Scan(s.buildOptions())
		if err != nil {
			return backlog.Manifest{}, err
		}
		return s.dir.WriteManifest(b, s.opts.Now())
	})
}

// committed runs after every successful mutation, still inside the queue.
func (s *BacklogService) committed(ctx context.Context, reason eventbus.ChangeReason, op string, sources []string) {
	s.log.Debug().Ctx(ctx).Str("op", op).Strs("sources", sources).Msg("backlog mutated")

	if s.opts.Manifest {
		b, err := s.dir.Scan(s.buildOptions())
		if err == nil {
			_, err = s.dir.WriteManifest(b, s.opts.Now())
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("manifest update failed")
		}
	}

	if s.bus != nil {
		s.bus.PublishBacklogChanged(eventbus.BacklogChangedPayload{
			Root:    s.dir.Root(),
			Reason:  reason,
			Op:      op,
			Sources: sources,
		})
	}
}
