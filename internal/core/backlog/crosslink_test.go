package backlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(slug string, status ItemStatus) WorkItem {
	parsed, _ := ParseItemSlug(slug)
	return WorkItem{
		ID:             parsed.ID,
		Slug:           slug,
		Title:          slug,
		Status:         status,
		DeclaredStatus: status,
		Source:         "work/" + slug + "/index.md",
	}
}

func newTask(item, tid string, status TaskStatus, deps ...string) Task {
	return Task{
		TID:       tid,
		Slug:      "t" + tid,
		Name:      "task " + tid,
		Status:    status,
		DependsOn: deps,
		ItemSlug:  item,
		Source:    "work/" + item + "/" + tid + "-t" + tid + ".md",
	}
}

func TestCrossLinkCycles(t *testing.T) {
	tests := []struct {
		name       string
		tasks      []Task
		wantCycles int
		wantPath   string
	}{
		{
			name: "two node cycle",
			tasks: []Task{
				newTask("001-a", "001", TaskOpen, "002"),
				newTask("001-a", "002", TaskOpen, "001"),
			},
			wantCycles: 1,
			wantPath:   "001 -> 002 -> 001",
		},
		{
			name: "three node cycle",
			tasks: []Task{
				newTask("001-a", "001", TaskOpen, "002"),
				newTask("001-a", "002", TaskOpen, "003"),
				newTask("001-a", "003", TaskOpen, "001"),
			},
			wantCycles: 1,
			wantPath:   "001 -> 002 -> 003 -> 001",
		},
		{
			name: "diamond has no cycle",
			tasks: []Task{
				newTask("001-a", "001", TaskOpen, "002", "003"),
				newTask("001-a", "002", TaskOpen, "004"),
				newTask("001-a", "003", TaskOpen, "004"),
				newTask("001-a", "004", TaskOpen),
			},
			wantCycles: 0,
		},
		{
			name: "disjoint components",
			tasks: []Task{
				newTask("001-a", "001", TaskOpen),
				newTask("001-a", "005", TaskOpen, "006"),
				newTask("001-a", "006", TaskOpen, "005"),
			},
			wantCycles: 1,
			wantPath:   "005 -> 006 -> 005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linked := CrossLink([]WorkItem{newItem("001-a", ItemOpen)}, tt.tasks)
			assert.Equal(t, tt.wantCycles, linked.Report.Count(CodeCircularDependency))
			if tt.wantPath != "" {
				require.NotEmpty(t, linked.Report.Errors)
				assert.Contains(t, linked.Report.Errors[0].Message, tt.wantPath)
			}
		})
	}
}

func TestCrossLinkCyclesAreScopedPerItem(t *testing.T) {
	tasks := []Task{
		newTask("001-a", "001", TaskOpen, "002"),
		newTask("002-b", "002", TaskOpen, "001"),
	}
	linked := CrossLink([]WorkItem{newItem("001-a", ItemOpen), newItem("002-b", ItemOpen)}, tasks)

	assert.Zero(t, linked.Report.Count(CodeCircularDependency))
	assert.Equal(t, 2, linked.Report.Count(CodeInvalidDep))
}

func TestCrossLinkSelfDep(t *testing.T) {
	tasks := []Task{newTask("001-a", "001", TaskOpen, "001")}
	linked := CrossLink([]WorkItem{newItem("001-a", ItemOpen)}, tasks)

	assert.Equal(t, 1, linked.Report.Count(CodeSelfDep))
	assert.Zero(t, linked.Report.Count(CodeInvalidDep))
	assert.Zero(t, linked.Report.Count(CodeCircularDependency))
}

func TestCrossLinkInvalidDepIsWarning(t *testing.T) {
	tasks := []Task{newTask("001-a", "001", TaskOpen, "009")}
	linked := CrossLink([]WorkItem{newItem("001-a", ItemOpen)}, tasks)

	assert.True(t, linked.Report.OK())
	require.Len(t, linked.Report.Warnings, 1)
	assert.Equal(t, CodeInvalidDep, linked.Report.Warnings[0].Code)
}

func TestCrossLinkDerivedStatus(t *testing.T) {
	item := newItem("001-a", ItemClaimed)
	item.Assignee = "w"
	tasks := []Task{
		newTask("001-a", "001", TaskDone),
		newTask("001-a", "002", TaskOpen),
	}

	linked := CrossLink([]WorkItem{item}, tasks)
	assert.Equal(t, ItemInProgress, linked.Effective["001-a"])
	assert.Equal(t, 1, linked.Report.Count(CodeStatusMismatch))
	assert.True(t, linked.Report.OK())
}

func TestCrossLinkTasklessItemIsOpen(t *testing.T) {
	for _, declared := range []ItemStatus{ItemPlan, ItemClaimed, ItemInProgress, ItemDone} {
		t.Run(string(declared), func(t *testing.T) {
			item := newItem("001-a", declared)
			if declared == ItemClaimed {
				item.Assignee = "planner"
			}

			linked := CrossLink([]WorkItem{item}, nil)
			assert.Equal(t, ItemOpen, linked.Effective["001-a"])
			assert.Equal(t, 1, linked.Report.Count(CodeStatusMismatch))
			assert.True(t, linked.Report.OK())
		})
	}

	linked := CrossLink([]WorkItem{newItem("002-b", ItemOpen)}, nil)
	assert.Equal(t, ItemOpen, linked.Effective["002-b"])
	assert.Empty(t, linked.Report.All())
}

func TestCrossLinkInvariants(t *testing.T) {
	claimed := newItem("001-a", ItemClaimed)
	open := newItem("002-b", ItemOpen)
	open.Assignee = "stale"
	dupe := newItem("002-c", ItemPlan)

	done := newTask("002-b", "001", TaskDone)
	done.Assignee = "w"
	twin := newTask("002-b", "001", TaskDone)
	twin.Source = "work/002-b/1-twin.md"

	linked := CrossLink([]WorkItem{claimed, open, dupe}, []Task{done, twin})

	assert.Equal(t, 1, linked.Report.Count(CodeClaimedWithoutAssignee))
	assert.Equal(t, 1, linked.Report.Count(CodeAssigneeOnOpenItem))
	assert.Equal(t, 1, linked.Report.Count(CodeDuplicateID))
	assert.Equal(t, 1, linked.Report.Count(CodeDuplicateTID))
	assert.Equal(t, 1, linked.Report.Count(CodeDoneWithAssignee))
}

func TestCrossLinkLegacyTable(t *testing.T) {
	item := newItem("old", ItemOpen)
	item.LegacyTaskIDs = []string{"001", "003"}
	tasks := []Task{
		newTask("old", "001", TaskOpen),
		newTask("old", "002", TaskOpen),
	}

	linked := CrossLink([]WorkItem{item}, tasks)
	assert.True(t, linked.Report.OK())
	assert.Equal(t, 1, linked.Report.Count(CodeOrphanTaskFile))
	assert.Equal(t, 1, linked.Report.Count(CodeDanglingTaskRef))
}

func TestCrossLinkOrphanTask(t *testing.T) {
	linked := CrossLink(nil, []Task{newTask("ghost", "001", TaskOpen)})
	assert.Equal(t, 1, linked.Report.Count(CodeOrphanTaskFile))
}

func TestFindCyclesSelfLoopTerminates(t *testing.T) {
	cycles := FindCycles(map[string][]string{"a": {"a"}, "b": {}})
	assert.Equal(t, [][]string{{"a", "a"}}, cycles)
}
