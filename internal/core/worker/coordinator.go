package worker

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type entry struct {
	state State
	logs  *ring
}

// Coordinator tracks connected workers, their item claims and pending
// assignments. Each Coordinator owns its state; nothing is shared between
// instances.
type Coordinator struct {
	logLines int
	now      func() time.Time
	trigger  *Trigger

	mu      sync.Mutex
	workers map[string]*entry
	claims  map[string]string
	pending map[string][]Assignment
}

// NewCoordinator creates a coordinator keeping logLines log lines per worker.
func NewCoordinator(logLines int) *Coordinator {
	return &Coordinator{
		logLines: logLines,
		now:      time.Now,
		trigger:  NewTrigger(),
		workers:  make(map[string]*entry),
		claims:   make(map[string]string),
		pending:  make(map[string][]Assignment),
	}
}

// Trigger returns the trigger fired when work may have become available.
func (c *Coordinator) Trigger() *Trigger {
	return c.trigger
}

// Notify wakes idle workers. It satisfies the event bus Notifier.
func (c *Coordinator) Notify() {
	c.trigger.Notify()
}

// Report records a worker status update. A working report on an item with
// no task claims that item for the worker; an idle report releases it.
func (c *Coordinator) Report(r Report) (State, error) {
	if err := r.Validate(); err != nil {
		return State{}, err
	}
	key := Key(r.Name, r.Role)

	c.mu.Lock()

	e, ok := c.workers[key]
	if !ok {
		e = &entry{logs: newRing(c.logLines)}
		c.workers[key] = e
	}

	released := false
	switch {
	case r.Status.Working() && r.ItemID != "" && r.TaskID == "":
		if other, claimed := c.claimedBy(r.ItemID); claimed && other != key {
			c.mu.Unlock()
			return State{}, fmt.Errorf("%w: %s is held by %s", ErrAlreadyClaimed, r.ItemID, other)
		}
		c.claims[key] = r.ItemID
	case r.Status == StatusIdle:
		if _, had := c.claims[key]; had {
			delete(c.claims, key)
			released = true
		}
	}

	if r.Status.Working() {
		c.consume(r.Name, r.TaskID, r.ItemID)
	}

	for _, line := range r.Logs {
		e.logs.push(line)
	}

	e.state = State{
		Key:       key,
		Name:      r.Name,
		Role:      r.Role,
		Status:    r.Status,
		TaskID:    r.TaskID,
		ItemID:    r.ItemID,
		TaskTitle: r.TaskTitle,
		LastSeen:  c.now(),
	}
	if r.Status == StatusIdle {
		e.state.TaskID, e.state.ItemID, e.state.TaskTitle = "", "", ""
	}
	out := e.state
	out.LastLogs = e.logs.snapshot()

	c.mu.Unlock()

	if released {
		c.trigger.Notify()
	}
	return out, nil
}

// consume drops pending assignments the worker has started on.
func (c *Coordinator) consume(name, taskID, itemID string) {
	queue := c.pending[name]
	kept := queue[:0]
	for _, a := range queue {
		if (taskID != "" && a.TaskID == taskID) || (taskID == "" && itemID != "" && a.ItemID == itemID && a.TaskID == "") {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		delete(c.pending, name)
		return
	}
	c.pending[name] = kept
}

func (c *Coordinator) claimedBy(itemID string) (string, bool) {
	for key, id := range c.claims {
		if id == itemID {
			return key, true
		}
	}
	return "", false
}

// Claims returns a copy of the claim map, worker key to item slug.
func (c *Coordinator) Claims() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.claims))
	for k, v := range c.claims {
		out[k] = v
	}
	return out
}

// Workers returns every known worker sorted by key.
func (c *Coordinator) Workers() []State {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]State, 0, len(c.workers))
	for _, e := range c.workers {
		s := e.state
		s.LastLogs = e.logs.snapshot()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Worker returns the state for key.
func (c *Coordinator) Worker(key string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.workers[key]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownWorker, key)
	}
	s := e.state
	s.LastLogs = e.logs.snapshot()
	return s, nil
}

// Push queues an assignment for a worker and wakes idle workers.
func (c *Coordinator) Push(a Assignment) error {
	if err := a.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.pending[a.WorkerID] = append(c.pending[a.WorkerID], a)
	c.mu.Unlock()

	c.trigger.Notify()
	return nil
}

// Pending returns the queued assignments of a worker without consuming them.
func (c *Coordinator) Pending(workerID string) []Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Assignment(nil), c.pending[workerID]...)
}

// busyTasks returns task sources some worker currently reports working on.
func (c *Coordinator) busyTasks() map[string]string {
	out := make(map[string]string)
	for key, e := range c.workers {
		if e.state.Status.Working() && e.state.TaskID != "" {
			out[e.state.TaskID] = key
		}
	}
	return out
}
