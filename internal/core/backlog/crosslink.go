package backlog

import (
	"fmt"
	"sort"
	"strings"
)

// Linked is the result of cross-linking parsed items and tasks.
type Linked struct {
	Report Report
	// Effective maps item slug to the status used for display and routing.
	Effective map[string]ItemStatus
}

// CrossLink resolves references between items and tasks, derives item status
// and reports structural problems. It is deterministic and performs no I/O.
func CrossLink(items []WorkItem, tasks []Task) Linked {
	var r Report
	effective := make(map[string]ItemStatus, len(items))

	byItem := make(map[string][]Task)
	for _, t := range tasks {
		byItem[t.ItemSlug] = append(byItem[t.ItemSlug], t)
	}

	seenIDs := make(map[string]string)
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.Slug] = true

		if it.ID != "" {
			if other, dup := seenIDs[it.ID]; dup {
				r.errorf(CodeDuplicateID, it.Source, fmt.Sprintf("item id %s is also used by %s", it.ID, other))
			} else {
				seenIDs[it.ID] = it.Slug
			}
		}

		r.merge(checkItemAssignee(it))

		itemTasks := byItem[it.Slug]
		r.merge(checkTasks(itemTasks))
		r.merge(checkLegacyTable(it, itemTasks))

		statuses := make([]TaskStatus, 0, len(itemTasks))
		for _, t := range itemTasks {
			statuses = append(statuses, t.Status)
		}

		derived := DeriveStatus(statuses)
		effective[it.Slug] = derived
		if it.DeclaredStatus != "" && it.DeclaredStatus != derived {
			r.warnf(CodeStatusMismatch, it.Source,
				fmt.Sprintf("declared status %q differs from derived status %q", it.DeclaredStatus, derived))
		}
	}

	for _, t := range tasks {
		if !known[t.ItemSlug] {
			r.warnf(CodeOrphanTaskFile, t.Source, fmt.Sprintf("task file has no item index in %s", t.ItemSlug))
		}
	}

	return Linked{Report: r, Effective: effective}
}

func checkItemAssignee(it WorkItem) Report {
	var r Report
	switch it.DeclaredStatus {
	case ItemClaimed:
		if it.Assignee == "" {
			r.errorf(CodeClaimedWithoutAssignee, it.Source, "claimed item has no assignee")
		}
	case ItemOpen, ItemDone:
		if it.Assignee != "" {
			r.warnf(CodeAssigneeOnOpenItem, it.Source,
				fmt.Sprintf("%s item still has assignee %q", it.DeclaredStatus, it.Assignee))
		}
	}
	return r
}

// checkTasks validates the tasks of a single item: per-task invariants,
// dependency references and the dependency graph.
func checkTasks(tasks []Task) Report {
	var r Report

	ids := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		if first, dup := ids[t.TID]; dup {
			r.errorf(CodeDuplicateTID, t.Source, fmt.Sprintf("tid %s is also used by %s", t.TID, first.Source))
			continue
		}
		ids[t.TID] = t
	}

	graph := make(map[string][]string, len(ids))
	for _, t := range tasks {
		if t.Status == TaskDone && t.Assignee != "" {
			r.errorf(CodeDoneWithAssignee, t.Source, fmt.Sprintf("done task still has assignee %q", t.Assignee))
		}
		if ids[t.TID].Source != t.Source {
			continue
		}

		edges := []string{}
		for _, dep := range t.DependsOn {
			switch {
			case dep == t.TID:
				r.errorf(CodeSelfDep, t.Source, fmt.Sprintf("task %s depends on itself", t.TID))
			case !hasTask(ids, dep):
				r.warnf(CodeInvalidDep, t.Source, fmt.Sprintf("task %s depends on unknown task %s", t.TID, dep))
			default:
				edges = append(edges, dep)
			}
		}
		sort.Strings(edges)
		graph[t.TID] = edges
	}

	for _, cycle := range FindCycles(graph) {
		source := ids[cycle[0]].Source
		r.errorf(CodeCircularDependency, source, "circular dependency: "+strings.Join(cycle, " -> "))
	}

	return r
}

func hasTask(ids map[string]Task, tid string) bool {
	_, ok := ids[tid]
	return ok
}

// checkLegacyTable compares an item's legacy task table with the task files
// found in its folder. Items without a table are not checked.
func checkLegacyTable(it WorkItem, tasks []Task) Report {
	var r Report
	if it.LegacyTaskIDs == nil {
		return r
	}

	listed := make(map[string]bool, len(it.LegacyTaskIDs))
	for _, id := range it.LegacyTaskIDs {
		listed[id] = true
	}
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.TID] = true
		if !listed[t.TID] {
			r.warnf(CodeOrphanTaskFile, t.Source, fmt.Sprintf("task %s is not listed in the tasks table of %s", t.TID, it.Slug))
		}
	}
	for _, id := range it.LegacyTaskIDs {
		if !present[id] {
			r.warnf(CodeDanglingTaskRef, it.Source, fmt.Sprintf("tasks table lists %s but no task file exists", id))
		}
	}
	return r
}

// FindCycles returns one cycle per back edge found by a depth-first search
// over graph. Each cycle starts and ends with the same node, e.g.
// [a b c a]. Every node is used as a root once so disjoint components are
// covered. Traversal order is sorted, so output is deterministic.
func FindCycles(graph map[string][]string) [][]string {
	const (
		white = iota
		grey
		black
	)

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	type frame struct {
		node string
		next int
	}

	color := make(map[string]int, len(graph))
	var cycles [][]string

	for _, root := range nodes {
		if color[root] != white {
			continue
		}

		stack := []frame{{node: root}}
		path := []string{root}
		color[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := graph[top.node]
			if top.next >= len(edges) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}

			to := edges[top.next]
			top.next++

			switch color[to] {
			case white:
				color[to] = grey
				stack = append(stack, frame{node: to})
				path = append(path, to)
			case grey:
				start := 0
				for i, n := range path {
					if n == to {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), to)
				cycles = append(cycles, cycle)
			}
		}
	}

	return cycles
}
