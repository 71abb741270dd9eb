// Package worker coordinates worker processes pulling work from a backlog:
// their reported state, explicit assignments, item claims for task-less
// work, and the trigger idle workers wait on.
package worker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownWorker is returned when a worker has never reported.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrInvalidReport is returned for a report with missing or bad fields.
	ErrInvalidReport = errors.New("invalid worker report")
	// ErrAlreadyClaimed is returned when a worker reports progress on an item
	// another worker has claimed.
	ErrAlreadyClaimed = errors.New("item already claimed")
)

// Status is a worker's self-reported state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in-progress"
	StatusBusy       Status = "busy"
	StatusDone       Status = "done"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusInProgress, StatusBusy, StatusDone:
		return true
	}
	return false
}

// Working reports whether s means the worker is executing something.
func (s Status) Working() bool {
	return s == StatusInProgress || s == StatusBusy
}

// RolePlanner is the role that may pick up unassigned task-less items.
const RolePlanner = "planner"

// Key identifies a worker as "name:role".
func Key(name, role string) string {
	return name + ":" + role
}

// Report is one status update sent by a worker.
type Report struct {
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Status    Status   `json:"status"`
	TaskID    string   `json:"taskId,omitempty"`
	ItemID    string   `json:"itemId,omitempty"`
	TaskTitle string   `json:"taskTitle,omitempty"`
	Logs      []string `json:"logs,omitempty"`
}

// Validate checks the report's required fields.
func (r Report) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidReport)
	}
	if strings.Contains(r.Name, ":") || strings.Contains(r.Role, ":") {
		return fmt.Errorf("%w: name and role may not contain ':'", ErrInvalidReport)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidReport, r.Status)
	}
	return nil
}

// State is the coordinator's view of one worker.
type State struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    Status    `json:"status"`
	TaskID    string    `json:"taskId,omitempty"`
	ItemID    string    `json:"itemId,omitempty"`
	TaskTitle string    `json:"taskTitle,omitempty"`
	LastLogs  []string  `json:"lastLogs"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Assignment is work explicitly pushed to a worker. TaskID is a task source
// path, ItemID an item slug.
type Assignment struct {
	WorkerID string `json:"workerId"`
	TaskID   string `json:"taskId,omitempty"`
	ItemID   string `json:"itemId,omitempty"`
}

// Validate checks that the assignment names a worker and some work.
func (a Assignment) Validate() error {
	if strings.TrimSpace(a.WorkerID) == "" {
		return fmt.Errorf("%w: workerId is required", ErrInvalidReport)
	}
	if a.TaskID == "" && a.ItemID == "" {
		return fmt.Errorf("%w: taskId or itemId is required", ErrInvalidReport)
	}
	return nil
}

// ring is a bounded log buffer that keeps the most recent lines.
type ring struct {
	lines []string
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{lines: make([]string, capacity)}
}

func (r *ring) push(line string) {
	idx := (r.start + r.size) % len(r.lines)
	r.lines[idx] = line
	if r.size < len(r.lines) {
		r.size++
		return
	}
	r.start = (r.start + 1) % len(r.lines)
}

func (r *ring) snapshot() []string {
	out := make([]string, r.size)
	for i := range r.size {
		out[i] = r.lines[(r.start+i)%len(r.lines)]
	}
	return out
}
