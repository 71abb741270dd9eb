package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBoard is an in-memory Board backed by a Coordinator.
type fakeBoard struct {
	mu      sync.Mutex
	coord   *Coordinator
	backlog backlog.Backlog
	moves   []string
	readErr error
}

func (f *fakeBoard) Work(ctx context.Context, name, role string) (Work, error) {
	f.mu.Lock()
	b := f.backlog
	f.mu.Unlock()
	return f.coord.Actionable(b, name, role), nil
}

func (f *fakeBoard) Report(ctx context.Context, r Report) error {
	_, err := f.coord.Report(r)
	return err
}

func (f *fakeBoard) SetTaskStatus(ctx context.Context, source string, status backlog.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.backlog.Tasks {
		if f.backlog.Tasks[i].Source == source {
			f.backlog.Tasks[i].Status = status
			if status == backlog.TaskDone {
				f.backlog.Tasks[i].Assignee = ""
			}
			f.moves = append(f.moves, string(status))
			return nil
		}
	}
	return backlog.NotFound("task", source)
}

func (f *fakeBoard) ReadFile(ctx context.Context, source string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return "content of " + source, nil
}

func (f *fakeBoard) statusOf(source string) backlog.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, _ := f.backlog.Task(source)
	return t.Status
}

func newRunner(board Board, agent Agent, role string) *Runner {
	return NewRunner(zerolog.Nop(), board, agent, RunnerOptions{Name: "w", Role: role, Poll: time.Hour})
}

func TestRunnerCompletesTask(t *testing.T) {
	tk := task("001-a", "001", backlog.TaskOpen, "w")
	board := &fakeBoard{coord: NewCoordinator(10), backlog: backlog.Backlog{Tasks: []backlog.Task{tk}}}

	var seen Job
	agent := AgentFunc(func(ctx context.Context, job Job) (Result, error) {
		seen = job
		st, err := board.coord.Worker("w:dev")
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, st.Status)
		assert.Equal(t, tk.Source, st.TaskID)
		return Result{Success: true, Output: "line one\nline two\n"}, nil
	})

	worked, err := newRunner(board, agent, "dev").Step(context.Background())
	require.NoError(t, err)
	assert.True(t, worked)

	assert.Equal(t, "content of "+tk.Source, seen.Content)
	assert.Equal(t, []string{"in-progress", "done"}, board.moves)

	st, err := board.coord.Worker("w:dev")
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Equal(t, []string{"line one", "line two"}, st.LastLogs)

	worked, err = newRunner(board, agent, "dev").Step(context.Background())
	require.NoError(t, err)
	assert.False(t, worked, "a done task is no longer actionable")
}

func TestRunnerHumanReview(t *testing.T) {
	tk := task("001-a", "001", backlog.TaskOpen, "w")
	tk.RequiresHumanReview = true
	board := &fakeBoard{coord: NewCoordinator(10), backlog: backlog.Backlog{Tasks: []backlog.Task{tk}}}

	agent := AgentFunc(func(ctx context.Context, job Job) (Result, error) {
		return Result{Success: true}, nil
	})

	_, err := newRunner(board, agent, "dev").Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backlog.TaskReview, board.statusOf(tk.Source))
}

func TestRunnerRevertsFailedTask(t *testing.T) {
	tests := []struct {
		name  string
		agent Agent
	}{
		{
			name: "agent reports failure",
			agent: AgentFunc(func(ctx context.Context, job Job) (Result, error) {
				return Result{Success: false, Error: "compile error"}, nil
			}),
		},
		{
			name: "agent cannot run",
			agent: AgentFunc(func(ctx context.Context, job Job) (Result, error) {
				return Result{}, errors.New("no such binary")
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := task("001-a", "001", backlog.TaskOpen, "w")
			board := &fakeBoard{coord: NewCoordinator(10), backlog: backlog.Backlog{Tasks: []backlog.Task{tk}}}

			worked, err := newRunner(board, tt.agent, "dev").Step(context.Background())
			require.Error(t, err)
			assert.True(t, worked)

			assert.Equal(t, []string{"in-progress", "open"}, board.moves)

			st, err := board.coord.Worker("w:dev")
			require.NoError(t, err)
			assert.Equal(t, StatusIdle, st.Status)
			require.NotEmpty(t, st.LastLogs)
			assert.Contains(t, st.LastLogs[len(st.LastLogs)-1], "failed:")
		})
	}
}

func TestRunnerItemClaimsAndReleases(t *testing.T) {
	it := item("001-plan", backlog.ItemPlan, "")
	board := &fakeBoard{coord: NewCoordinator(10), backlog: backlog.Backlog{Items: []backlog.WorkItem{it}}}

	agent := AgentFunc(func(ctx context.Context, job Job) (Result, error) {
		require.NotNil(t, job.Item)
		assert.Equal(t, map[string]string{"w:planner": "001-plan"}, board.coord.Claims())
		assert.Empty(t, board.coord.Actionable(board.backlog, "other", RolePlanner).Items)
		return Result{Success: true}, nil
	})

	worked, err := newRunner(board, agent, RolePlanner).Step(context.Background())
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Empty(t, board.coord.Claims())
}

func TestRunnerSkipsItemClaimedElsewhere(t *testing.T) {
	board := &fakeBoard{
		coord: NewCoordinator(10),
		backlog: backlog.Backlog{Items: []backlog.WorkItem{
			item("001-plan", backlog.ItemPlan, ""),
			item("002-plan", backlog.ItemPlan, ""),
		}},
	}

	var ran []string
	agent := AgentFunc(func(ctx context.Context, job Job) (Result, error) {
		ran = append(ran, job.ItemSlug)
		return Result{Success: true}, nil
	})

	// Another planner takes 001 between listing and claiming.
	racing := &racingBoard{fakeBoard: board, steal: "001-plan"}
	worked, err := newRunner(racing, agent, RolePlanner).Step(context.Background())
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Equal(t, []string{"002-plan"}, ran)
}

type racingBoard struct {
	*fakeBoard
	steal string
	once  sync.Once
}

func (r *racingBoard) Work(ctx context.Context, name, role string) (Work, error) {
	w, err := r.fakeBoard.Work(ctx, name, role)
	r.once.Do(func() {
		_, _ = r.coord.Report(Report{Name: "rival", Role: RolePlanner, Status: StatusInProgress, ItemID: r.steal})
	})
	return w, err
}

func TestRunnerWakesOnTrigger(t *testing.T) {
	coord := NewCoordinator(10)
	board := &fakeBoard{coord: coord}

	done := make(chan string, 1)
	agent := AgentFunc(func(ctx context.Context, job Job) (Result, error) {
		done <- job.Task.Source
		return Result{Success: true}, nil
	})

	r := NewRunner(zerolog.Nop(), board, agent, RunnerOptions{Name: "w", Role: "dev", Poll: time.Hour, Trigger: coord.Trigger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := coord.Worker("w:dev")
		return err == nil
	}, time.Second, time.Millisecond)

	tk := task("001-a", "001", backlog.TaskOpen, "w")
	board.mu.Lock()
	board.backlog.Tasks = []backlog.Task{tk}
	board.mu.Unlock()

	// Keep notifying until the runner is parked on the trigger.
	require.Eventually(t, func() bool {
		coord.Notify()
		select {
		case src := <-done:
			assert.Equal(t, tk.Source, src)
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
