package worker

import (
	"sort"

	"github.com/colonyops/workboard/internal/core/backlog"
)

// Work is what a worker may pick up next.
type Work struct {
	Tasks []backlog.Task     `json:"tasks"`
	Items []backlog.WorkItem `json:"items"`
}

// Empty reports whether there is nothing to do.
func (w Work) Empty() bool {
	return len(w.Tasks) == 0 && len(w.Items) == 0
}

// Actionable answers "what should this worker work on" from the document
// alone plus the coordinator's claims and reports. Assignment state is fully
// recoverable from assignee fields; the pending queue only speeds up wakeups.
//
// A task qualifies when it is assigned to the worker, is not done, review or
// block, no worker reports working on it, and all of its dependencies are
// done. An item qualifies when it is assigned to the worker (or, for the
// planner role, unassigned and without tasks), is not done or in progress,
// and is not claimed by any worker.
func (c *Coordinator) Actionable(b backlog.Backlog, name, role string) Work {
	c.mu.Lock()
	busy := c.busyTasks()
	claimed := make(map[string]bool, len(c.claims))
	for _, item := range c.claims {
		claimed[item] = true
	}
	c.mu.Unlock()

	work := Work{Tasks: []backlog.Task{}, Items: []backlog.WorkItem{}}

	statusOf := make(map[string]map[string]backlog.TaskStatus)
	for _, t := range b.Tasks {
		if statusOf[t.ItemSlug] == nil {
			statusOf[t.ItemSlug] = make(map[string]backlog.TaskStatus)
		}
		statusOf[t.ItemSlug][t.TID] = t.Status
	}

	for _, t := range b.Tasks {
		if t.Assignee != name || !taskOpen(t.Status) {
			continue
		}
		if _, working := busy[t.Source]; working {
			continue
		}
		if !depsDone(t, statusOf[t.ItemSlug]) {
			continue
		}
		work.Tasks = append(work.Tasks, t)
	}

	for _, it := range b.Items {
		if claimed[it.Slug] || it.Status == backlog.ItemDone || it.Status == backlog.ItemInProgress {
			continue
		}
		switch {
		case it.Assignee == name:
			work.Items = append(work.Items, it)
		case role == RolePlanner && it.Assignee == "" && len(it.Tasks) == 0 &&
			(it.Status == backlog.ItemPlan || it.Status == backlog.ItemOpen):
			work.Items = append(work.Items, it)
		}
	}

	sort.SliceStable(work.Tasks, func(i, j int) bool {
		a, b := work.Tasks[i], work.Tasks[j]
		if a.ItemSlug != b.ItemSlug {
			return a.ItemSlug < b.ItemSlug
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.TID < b.TID
	})
	return work
}

func taskOpen(s backlog.TaskStatus) bool {
	switch s {
	case backlog.TaskPlan, backlog.TaskOpen, backlog.TaskInProgress:
		return true
	}
	return false
}

func depsDone(t backlog.Task, siblings map[string]backlog.TaskStatus) bool {
	for _, dep := range t.DependsOn {
		if s, ok := siblings[dep]; !ok || s != backlog.TaskDone {
			return false
		}
	}
	return true
}
