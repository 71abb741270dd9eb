package worker

import (
	"context"
	"time"
)

// EventKind classifies a history entry.
type EventKind string

const (
	EventReport     EventKind = "report"
	EventResult     EventKind = "result"
	EventAssignment EventKind = "assignment"
)

// Event is one entry in a worker's history.
type Event struct {
	ID        string    `json:"id"`
	Worker    string    `json:"worker"`
	Role      string    `json:"role,omitempty"`
	Kind      EventKind `json:"kind"`
	Status    string    `json:"status,omitempty"`
	TaskID    string    `json:"taskId,omitempty"`
	ItemID    string    `json:"itemId,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// History persists worker events. Implementations must be safe for
// concurrent use.
type History interface {
	Record(ctx context.Context, e Event) error
	// List returns the most recent events for a worker name, newest first.
	List(ctx context.Context, worker string, limit int) ([]Event, error)
}
