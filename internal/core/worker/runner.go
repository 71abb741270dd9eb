package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/logging"
	"github.com/rs/zerolog"
)

// Board is the part of the server a worker talks to. It is implemented
// in-process by the application services and over HTTP by boardclient.
type Board interface {
	// Work lists what name may pick up in role.
	Work(ctx context.Context, name, role string) (Work, error)
	// Report sends a status update.
	Report(ctx context.Context, r Report) error
	// SetTaskStatus moves a task to status.
	SetTaskStatus(ctx context.Context, source string, status backlog.TaskStatus) error
	// ReadFile returns the raw text of a backlog file.
	ReadFile(ctx context.Context, source string) (string, error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Name string
	Role string
	// Poll is the fallback interval between checks for work.
	Poll time.Duration
	// Trigger, when set, wakes the runner before Poll elapses.
	Trigger *Trigger
	// LogLines is how many trailing output lines are sent with the final
	// report of a job.
	LogLines int
}

// Runner is the worker loop: wait for work, claim it, run the agent and
// report the outcome back to the board.
type Runner struct {
	board Board
	agent Agent
	opts  RunnerOptions
	log   zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(log zerolog.Logger, board Board, agent Agent, opts RunnerOptions) *Runner {
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Second
	}
	if opts.LogLines <= 0 {
		opts.LogLines = 20
	}
	return &Runner{
		board: board,
		agent: agent,
		opts:  opts,
		log:   log.With().Str("worker", Key(opts.Name, opts.Role)).Logger(),
	}
}

// Run loops until ctx is canceled. It never returns an error for a failed
// job; those are reported to the board and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	ctx = logging.WithWorker(ctx, Key(r.opts.Name, r.opts.Role))

	if err := r.report(ctx, Report{Status: StatusIdle}); err != nil {
		r.log.Warn().Err(err).Msg("initial report failed")
	}

	for {
		var wake <-chan struct{}
		if r.opts.Trigger != nil {
			wake = r.opts.Trigger.Arm()
		}

		worked, err := r.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.log.Warn().Err(err).Msg("worker step failed")
			// A failed job reverts its task, which fires the trigger again.
			// Back off for a full poll interval instead of retrying at once.
			wake = nil
		}
		if worked && err == nil {
			continue
		}

		timer := time.NewTimer(r.opts.Poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Step picks up and runs at most one job. It reports whether a job ran.
// Tasks come before items; an item another worker claimed first is skipped.
func (r *Runner) Step(ctx context.Context) (bool, error) {
	work, err := r.board.Work(ctx, r.opts.Name, r.opts.Role)
	if err != nil {
		return false, fmt.Errorf("list work: %w", err)
	}

	if len(work.Tasks) > 0 {
		t := work.Tasks[0]
		return true, r.runTask(logging.WithItem(ctx, t.Source), t)
	}

	for _, it := range work.Items {
		err := r.runItem(logging.WithItem(ctx, it.Slug), it)
		if errors.Is(err, ErrAlreadyClaimed) {
			r.log.Debug().Str("item", it.Slug).Msg("item claimed elsewhere")
			continue
		}
		return true, err
	}
	return false, nil
}

func (r *Runner) runTask(ctx context.Context, t backlog.Task) (err error) {
	if err := r.report(ctx, Report{
		Status:    StatusInProgress,
		TaskID:    t.Source,
		ItemID:    t.ItemSlug,
		TaskTitle: t.Name,
	}); err != nil {
		return err
	}

	var logs []string
	defer func() {
		// Reports and reverts must reach the board even when ctx is done.
		final := context.WithoutCancel(ctx)
		if err != nil {
			if rerr := r.board.SetTaskStatus(final, t.Source, backlog.TaskOpen); rerr != nil {
				r.log.Error().Err(rerr).Str("task", t.Source).Msg("revert task failed")
			}
			logs = append(logs, "failed: "+err.Error())
		}
		if rerr := r.report(final, Report{Status: StatusIdle, Logs: logs}); rerr != nil {
			r.log.Warn().Err(rerr).Msg("idle report failed")
		}
	}()

	if t.Status != backlog.TaskInProgress {
		if err := r.board.SetTaskStatus(ctx, t.Source, backlog.TaskInProgress); err != nil {
			return fmt.Errorf("start %s: %w", t.Source, err)
		}
	}

	content, err := r.board.ReadFile(ctx, t.Source)
	if err != nil {
		return fmt.Errorf("read %s: %w", t.Source, err)
	}

	r.log.Info().Ctx(ctx).Str("task", t.Source).Msg("running task")
	res, err := r.agent.Execute(ctx, Job{ItemSlug: t.ItemSlug, Task: &t, Content: content})
	if err != nil {
		return fmt.Errorf("execute %s: %w", t.Source, err)
	}
	logs = tail(res.Output, r.opts.LogLines)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "agent reported failure"
		}
		return fmt.Errorf("task %s: %s", t.Source, msg)
	}

	next := backlog.TaskDone
	if t.RequiresHumanReview {
		next = backlog.TaskReview
	}
	if err := r.board.SetTaskStatus(ctx, t.Source, next); err != nil {
		return fmt.Errorf("finish %s: %w", t.Source, err)
	}
	r.log.Info().Ctx(ctx).Str("task", t.Source).Str("status", string(next)).Msg("task finished")
	return nil
}

func (r *Runner) runItem(ctx context.Context, it backlog.WorkItem) error {
	if err := r.report(ctx, Report{Status: StatusInProgress, ItemID: it.Slug, TaskTitle: it.Title}); err != nil {
		return err
	}

	var logs []string
	defer func() {
		if err := r.report(context.WithoutCancel(ctx), Report{Status: StatusIdle, Logs: logs}); err != nil {
			r.log.Warn().Err(err).Msg("idle report failed")
		}
	}()

	content, err := r.board.ReadFile(ctx, it.Source)
	if err != nil {
		return fmt.Errorf("read %s: %w", it.Source, err)
	}

	r.log.Info().Ctx(ctx).Str("item", it.Slug).Msg("running item")
	res, err := r.agent.Execute(ctx, Job{ItemSlug: it.Slug, Item: &it, Content: content})
	if err != nil {
		logs = []string{"failed: " + err.Error()}
		return fmt.Errorf("execute %s: %w", it.Slug, err)
	}
	logs = tail(res.Output, r.opts.LogLines)
	if !res.Success {
		logs = append(logs, "failed: "+res.Error)
		return fmt.Errorf("item %s: %s", it.Slug, res.Error)
	}
	return nil
}

func (r *Runner) report(ctx context.Context, rep Report) error {
	rep.Name = r.opts.Name
	rep.Role = r.opts.Role
	return r.board.Report(ctx, rep)
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
