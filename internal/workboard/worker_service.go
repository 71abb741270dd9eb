package workboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/eventbus"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
)

// WorkerService connects the coordinator to the document: assignments are
// written into assignee fields, reports are recorded in history, and the
// work listing is recomputed from a fresh scan on every call.
type WorkerService struct {
	coord   *worker.Coordinator
	backlog *BacklogService
	history worker.History
	bus     *eventbus.EventBus
	metrics *Metrics
	log     zerolog.Logger

	// reservationTTL is written as expires_at when a task is started.
	reservationTTL time.Duration
	now            func() time.Time
}

// NewWorkerService creates a WorkerService. history, bus and metrics may be
// nil.
func NewWorkerService(
	coord *worker.Coordinator,
	backlogSvc *BacklogService,
	history worker.History,
	bus *eventbus.EventBus,
	metrics *Metrics,
	log zerolog.Logger,
	reservationTTL time.Duration,
) *WorkerService {
	return &WorkerService{
		coord:          coord,
		backlog:        backlogSvc,
		history:        history,
		bus:            bus,
		metrics:        metrics,
		log:            log,
		reservationTTL: reservationTTL,
		now:            time.Now,
	}
}

// Coordinator returns the underlying coordinator.
func (s *WorkerService) Coordinator() *worker.Coordinator {
	return s.coord
}

// Report records a worker status update. An item given by its numeric id is
// recorded under its slug so claims and pending assignments match.
func (s *WorkerService) Report(ctx context.Context, r worker.Report) (worker.State, error) {
	if r.ItemID != "" {
		slug, err := s.itemSlug(ctx, r.ItemID)
		if err != nil {
			return worker.State{}, err
		}
		r.ItemID = slug
	}

	state, err := s.coord.Report(r)
	if err != nil {
		return worker.State{}, err
	}

	s.log.Debug().Ctx(ctx).
		Str("worker", state.Key).
		Str("status", string(r.Status)).
		Str("task", r.TaskID).
		Str("item", r.ItemID).
		Msg("worker report")

	s.record(ctx, worker.Event{
		Worker:  r.Name,
		Role:    r.Role,
		Kind:    worker.EventReport,
		Status:  string(r.Status),
		TaskID:  r.TaskID,
		ItemID:  r.ItemID,
		Message: lastLine(r.Logs),
	})

	if s.bus != nil {
		s.bus.PublishWorkerReported(eventbus.WorkerReportedPayload{
			Key:    state.Key,
			Name:   r.Name,
			Role:   r.Role,
			Status: string(r.Status),
			TaskID: r.TaskID,
			ItemID: r.ItemID,
		})
	}
	s.metrics.workerStates(s.coord.Workers(), len(s.coord.Claims()))
	return state, nil
}

// Workers returns every known worker.
func (s *WorkerService) Workers() []worker.State {
	return s.coord.Workers()
}

// History lists recent events of a worker, newest first. Without a history
// store it returns an empty list.
func (s *WorkerService) History(ctx context.Context, name string, limit int) ([]worker.Event, error) {
	if s.history == nil {
		return []worker.Event{}, nil
	}
	return s.history.List(ctx, name, limit)
}

// Assign persists an assignment into the document and queues it for the
// worker. Assigning an open item claims it for the worker.
func (s *WorkerService) Assign(ctx context.Context, a worker.Assignment) error {
	if err := a.Validate(); err != nil {
		return err
	}

	name := a.WorkerID
	var err error
	if a.TaskID != "" {
		_, err = s.backlog.ChangeTask(ctx, a.TaskID, workdir.TaskChange{Assignee: &name}, false)
	} else {
		a.ItemID, err = s.assignItem(ctx, a.ItemID, name)
	}
	if err != nil {
		return fmt.Errorf("assign %s: %w", a.WorkerID, err)
	}

	if err := s.coord.Push(a); err != nil {
		return err
	}
	s.metrics.assigned()

	s.record(ctx, worker.Event{
		Worker: a.WorkerID,
		Kind:   worker.EventAssignment,
		TaskID: a.TaskID,
		ItemID: a.ItemID,
	})

	if s.bus != nil {
		s.bus.PublishAssignmentCreated(eventbus.AssignmentCreatedPayload{
			WorkerID: a.WorkerID,
			TaskID:   a.TaskID,
			ItemID:   a.ItemID,
		})
	}
	return nil
}

// assignItem writes the assignee of the item addressed by key, an id or a
// slug, and returns the item's slug.
func (s *WorkerService) assignItem(ctx context.Context, key, name string) (string, error) {
	b, err := s.backlog.Scan(ctx)
	if err != nil {
		return "", err
	}
	it, ok := b.Item(key)
	if !ok {
		return "", backlog.NotFound("item", key)
	}

	ch := workdir.ItemChange{Assignee: &name}
	if it.DeclaredStatus == backlog.ItemOpen {
		ch.Status = backlog.ItemClaimed
	}
	_, err = s.backlog.ChangeItem(ctx, it.Slug, ch, false)
	return it.Slug, err
}

// itemSlug resolves an item id or slug to the slug. Unknown keys are
// returned unchanged.
func (s *WorkerService) itemSlug(ctx context.Context, key string) (string, error) {
	b, err := s.backlog.Scan(ctx)
	if err != nil {
		return "", err
	}
	if it, ok := b.Item(key); ok {
		return it.Slug, nil
	}
	return key, nil
}

// Work lists what a worker may pick up. Tasks with a pending assignment for
// the worker come first; the rest keep the coordinator's ordering.
func (s *WorkerService) Work(ctx context.Context, name, role string) (worker.Work, error) {
	b, err := s.backlog.Scan(ctx)
	if err != nil {
		return worker.Work{}, err
	}
	work := s.coord.Actionable(b, name, role)

	pending := s.coord.Pending(name)
	if len(pending) == 0 {
		return work, nil
	}

	first := make(map[string]bool, len(pending))
	for _, a := range pending {
		if a.TaskID != "" {
			first[a.TaskID] = true
		}
	}
	ordered := make([]backlog.Task, 0, len(work.Tasks))
	for _, t := range work.Tasks {
		if first[t.Source] {
			ordered = append(ordered, t)
		}
	}
	for _, t := range work.Tasks {
		if !first[t.Source] {
			ordered = append(ordered, t)
		}
	}
	work.Tasks = ordered
	return work, nil
}

// SetTaskStatus moves a task on behalf of a worker. Starting a task writes a
// reservation expiry; reverting an in-progress task to open publishes
// task.reverted.
func (s *WorkerService) SetTaskStatus(ctx context.Context, source string, status backlog.TaskStatus) error {
	ch := workdir.TaskChange{Status: status}
	switch status {
	case backlog.TaskInProgress:
		if s.reservationTTL > 0 {
			exp := s.now().Add(s.reservationTTL).UTC().Truncate(time.Second)
			ch.ExpiresAt = &exp
		}
	case backlog.TaskOpen, backlog.TaskReview:
		ch.ClearExpiry = true
	}

	cs, err := s.backlog.ChangeTask(ctx, source, ch, false)
	if err != nil {
		return err
	}

	before, _ := cs.Before.Task(source)
	if status == backlog.TaskOpen && before.Status == backlog.TaskInProgress {
		s.metrics.revert("run failed")
		if s.bus != nil {
			s.bus.PublishTaskReverted(eventbus.TaskRevertedPayload{Source: source, Reason: "run failed"})
		}
	}

	s.record(ctx, worker.Event{
		Worker: before.Assignee,
		Kind:   worker.EventResult,
		Status: string(status),
		TaskID: source,
		ItemID: before.ItemSlug,
	})
	return nil
}

func (s *WorkerService) record(ctx context.Context, e worker.Event) {
	if s.history == nil || e.Worker == "" {
		return
	}
	if err := s.history.Record(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("worker", e.Worker).Msg("failed to record worker history")
	}
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
