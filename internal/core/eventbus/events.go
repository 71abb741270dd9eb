// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within workboard.
package eventbus

// Event names a kind of event.
type Event string

// Keep list sorted A-Z.
const (
	EventAssignmentCreated Event = "assignment.created"
	EventBacklogChanged    Event = "backlog.changed"
	EventTaskReverted      Event = "task.reverted"
	EventWorkerReported    Event = "worker.reported"
)

// Events lists every event the bus knows about.
var Events = []Event{
	EventAssignmentCreated,
	EventBacklogChanged,
	EventTaskReverted,
	EventWorkerReported,
}

// ChangeReason describes what caused a backlog change.
type ChangeReason string

const (
	ReasonMutation ChangeReason = "mutation"
	ReasonExternal ChangeReason = "external"
	ReasonSweep    ChangeReason = "sweep"
)

// BacklogChangedPayload is emitted after a committed mutation or when the
// watcher sees the work dir change on disk.
type BacklogChangedPayload struct {
	Root    string
	Reason  ChangeReason
	Op      string
	Sources []string
}

// AssignmentCreatedPayload is emitted when work is pushed to a worker.
type AssignmentCreatedPayload struct {
	WorkerID string
	TaskID   string
	ItemID   string
}

// WorkerReportedPayload is emitted for every worker status report.
type WorkerReportedPayload struct {
	Key    string
	Name   string
	Role   string
	Status string
	TaskID string
	ItemID string
}

// TaskRevertedPayload is emitted when a task is put back to open after a
// failed run or an expired reservation.
type TaskRevertedPayload struct {
	Source string
	Reason string
}
