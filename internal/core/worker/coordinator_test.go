package worker

import (
	"testing"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(slug string, status backlog.ItemStatus, assignee string, tasks ...string) backlog.WorkItem {
	return backlog.WorkItem{
		Slug:     slug,
		Title:    slug,
		Status:   status,
		Assignee: assignee,
		Tasks:    tasks,
		Source:   "work/" + slug + "/index.md",
	}
}

func task(itemSlug, tid string, status backlog.TaskStatus, assignee string, deps ...string) backlog.Task {
	return backlog.Task{
		TID:       tid,
		Name:      "task " + tid,
		Status:    status,
		Assignee:  assignee,
		DependsOn: deps,
		ItemSlug:  itemSlug,
		Source:    "work/" + itemSlug + "/" + tid + "-t.md",
	}
}

func TestReportValidation(t *testing.T) {
	c := NewCoordinator(10)

	_, err := c.Report(Report{Status: StatusIdle})
	require.ErrorIs(t, err, ErrInvalidReport)

	_, err = c.Report(Report{Name: "a:b", Status: StatusIdle})
	require.ErrorIs(t, err, ErrInvalidReport)

	_, err = c.Report(Report{Name: "a", Status: "sleeping"})
	require.ErrorIs(t, err, ErrInvalidReport)

	_, err = c.Worker("a:dev")
	require.ErrorIs(t, err, ErrUnknownWorker)
}

func TestReportKeysByNameAndRole(t *testing.T) {
	c := NewCoordinator(10)

	_, err := c.Report(Report{Name: "alice", Role: "dev", Status: StatusIdle})
	require.NoError(t, err)
	_, err = c.Report(Report{Name: "alice", Role: RolePlanner, Status: StatusIdle})
	require.NoError(t, err)

	workers := c.Workers()
	require.Len(t, workers, 2)
	assert.Equal(t, "alice:dev", workers[0].Key)
	assert.Equal(t, "alice:planner", workers[1].Key)
}

func TestReportLogRing(t *testing.T) {
	c := NewCoordinator(3)

	_, err := c.Report(Report{Name: "w", Status: StatusBusy, Logs: []string{"1", "2"}})
	require.NoError(t, err)
	st, err := c.Report(Report{Name: "w", Status: StatusBusy, Logs: []string{"3", "4", "5"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"3", "4", "5"}, st.LastLogs)
}

func TestClaimExclusivity(t *testing.T) {
	c := NewCoordinator(10)
	b := backlog.Backlog{Items: []backlog.WorkItem{item("001-plan", backlog.ItemPlan, "")}}

	assert.Len(t, c.Actionable(b, "b", RolePlanner).Items, 1)

	_, err := c.Report(Report{Name: "a", Role: RolePlanner, Status: StatusInProgress, ItemID: "001-plan"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a:planner": "001-plan"}, c.Claims())

	assert.Empty(t, c.Actionable(b, "b", RolePlanner).Items)
	assert.Empty(t, c.Actionable(b, "a", RolePlanner).Items)

	_, err = c.Report(Report{Name: "b", Role: RolePlanner, Status: StatusInProgress, ItemID: "001-plan"})
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	// Progress reports from the holder keep the claim.
	_, err = c.Report(Report{Name: "a", Role: RolePlanner, Status: StatusBusy, ItemID: "001-plan"})
	require.NoError(t, err)
	assert.Empty(t, c.Actionable(b, "b", RolePlanner).Items)

	wake := c.Trigger().Arm()
	_, err = c.Report(Report{Name: "a", Role: RolePlanner, Status: StatusIdle})
	require.NoError(t, err)
	assert.Empty(t, c.Claims())

	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("releasing a claim should fire the trigger")
	}

	assert.Len(t, c.Actionable(b, "b", RolePlanner).Items, 1)
}

func TestCoordinatorsDoNotShareState(t *testing.T) {
	a, b := NewCoordinator(5), NewCoordinator(5)

	_, err := a.Report(Report{Name: "w", Status: StatusInProgress, ItemID: "001-x"})
	require.NoError(t, err)

	assert.Empty(t, b.Claims())
	assert.Empty(t, b.Workers())
}

func TestPushTakeAndConsume(t *testing.T) {
	c := NewCoordinator(5)

	require.Error(t, c.Push(Assignment{WorkerID: "w"}))

	wake := c.Trigger().Arm()
	require.NoError(t, c.Push(Assignment{WorkerID: "w", TaskID: "work/001-a/001-t.md"}))
	require.NoError(t, c.Push(Assignment{WorkerID: "w", ItemID: "002-b"}))

	select {
	case <-wake:
	default:
		t.Fatal("push should fire the trigger")
	}

	assert.Len(t, c.Pending("w"), 2)

	_, err := c.Report(Report{Name: "w", Status: StatusInProgress, TaskID: "work/001-a/001-t.md", ItemID: "001-a"})
	require.NoError(t, err)
	assert.Equal(t, []Assignment{{WorkerID: "w", ItemID: "002-b"}}, c.Pending("w"))

	_, err = c.Report(Report{Name: "w", Status: StatusInProgress, ItemID: "002-b"})
	require.NoError(t, err)
	assert.Empty(t, c.Pending("w"))
}

func TestActionableTasks(t *testing.T) {
	c := NewCoordinator(5)
	b := backlog.Backlog{
		Items: []backlog.WorkItem{item("001-a", backlog.ItemInProgress, "")},
		Tasks: []backlog.Task{
			task("001-a", "001", backlog.TaskDone, ""),
			task("001-a", "002", backlog.TaskOpen, "w", "001"),
			task("001-a", "003", backlog.TaskOpen, "w", "002"),
			task("001-a", "004", backlog.TaskReview, "w"),
			task("001-a", "005", backlog.TaskOpen, "other"),
			task("001-a", "006", backlog.TaskOpen, "w", "404"),
			task("001-a", "007", backlog.TaskInProgress, "w"),
		},
	}

	work := c.Actionable(b, "w", "dev")
	var tids []string
	for _, tk := range work.Tasks {
		tids = append(tids, tk.TID)
	}
	assert.Equal(t, []string{"002", "007"}, tids, "blocked deps, review, other assignee and unknown deps are skipped")

	_, err := c.Report(Report{Name: "w", Role: "dev", Status: StatusInProgress, TaskID: "work/001-a/007-t.md"})
	require.NoError(t, err)

	work = c.Actionable(b, "w", "dev")
	require.Len(t, work.Tasks, 1)
	assert.Equal(t, "002", work.Tasks[0].TID)
	assert.Empty(t, work.Items)
}

func TestActionableItems(t *testing.T) {
	c := NewCoordinator(5)
	b := backlog.Backlog{
		Items: []backlog.WorkItem{
			item("001-mine", backlog.ItemClaimed, "w"),
			item("002-done", backlog.ItemDone, "w"),
			item("003-free", backlog.ItemPlan, ""),
			item("004-split", backlog.ItemOpen, "", "work/004-split/001-t.md"),
			item("005-theirs", backlog.ItemOpen, "x"),
		},
	}

	dev := c.Actionable(b, "w", "dev")
	require.Len(t, dev.Items, 1)
	assert.Equal(t, "001-mine", dev.Items[0].Slug)

	planner := c.Actionable(b, "w", RolePlanner)
	require.Len(t, planner.Items, 2)
	assert.Equal(t, "001-mine", planner.Items[0].Slug)
	assert.Equal(t, "003-free", planner.Items[1].Slug)
	assert.False(t, planner.Empty())
}
