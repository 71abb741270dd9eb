package backlog

import (
	"fmt"
	"strings"
)

// Schema selects the status vocabulary of a file. Older backlogs used a
// smaller todo/in-progress/done set.
type Schema int

const (
	SchemaLegacy  Schema = 1
	SchemaCurrent Schema = 2
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPlan       TaskStatus = "plan"
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskBlock      TaskStatus = "block"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses lists every valid task status in lifecycle order.
var TaskStatuses = []TaskStatus{TaskPlan, TaskOpen, TaskInProgress, TaskReview, TaskBlock, TaskDone}

// IsValid reports whether s is a member of the closed task status set.
func (s TaskStatus) IsValid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ItemStatus is the lifecycle state of a work item.
type ItemStatus string

const (
	ItemPlan       ItemStatus = "plan"
	ItemOpen       ItemStatus = "open"
	ItemClaimed    ItemStatus = "claimed"
	ItemInProgress ItemStatus = "in-progress"
	ItemDone       ItemStatus = "done"
)

// ItemStatuses lists every valid item status in lifecycle order.
var ItemStatuses = []ItemStatus{ItemPlan, ItemOpen, ItemClaimed, ItemInProgress, ItemDone}

// IsValid reports whether s is a member of the closed item status set.
func (s ItemStatus) IsValid() bool {
	for _, v := range ItemStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// legacyStatuses maps the schema 1 vocabulary onto current statuses.
var legacyStatuses = map[string]TaskStatus{
	"todo":        TaskOpen,
	"in-progress": TaskInProgress,
	"in_progress": TaskInProgress,
	"done":        TaskDone,
}

// statusAliases are accepted spellings in the current schema.
var statusAliases = map[string]TaskStatus{
	"ip":          TaskInProgress,
	"in_progress": TaskInProgress,
	"blocked":     TaskBlock,
}

// DetectSchema picks the status vocabulary for a file from its declared
// schema_version, falling back to sniffing the status token.
func DetectSchema(version int, status string) Schema {
	switch version {
	case int(SchemaLegacy):
		return SchemaLegacy
	case int(SchemaCurrent):
		return SchemaCurrent
	}
	if strings.EqualFold(strings.TrimSpace(status), "todo") {
		return SchemaLegacy
	}
	return SchemaCurrent
}

// ParseTaskStatus converts a raw status token under the given schema. Unknown
// values are an error; there is no default.
func ParseTaskStatus(raw string, schema Schema) (TaskStatus, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if schema == SchemaLegacy {
		if s, ok := legacyStatuses[v]; ok {
			return s, nil
		}
		return "", fmt.Errorf("%w: %q (legacy schema accepts todo, in-progress, done)", ErrInvalidStatus, raw)
	}

	if s := TaskStatus(v); s.IsValid() {
		return s, nil
	}
	if s, ok := statusAliases[v]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// ParseItemStatus converts a raw item status token under the given schema.
func ParseItemStatus(raw string, schema Schema) (ItemStatus, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if schema == SchemaLegacy {
		if s, ok := legacyStatuses[v]; ok {
			return ItemStatus(s), nil
		}
		return "", fmt.Errorf("%w: %q (legacy schema accepts todo, in-progress, done)", ErrInvalidStatus, raw)
	}

	if s := ItemStatus(v); s.IsValid() {
		return s, nil
	}
	if s, ok := statusAliases[v]; ok && s == TaskInProgress {
		return ItemInProgress, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// StatusToken returns the token written to a file of the given schema for s.
func StatusToken(s TaskStatus, schema Schema) (string, error) {
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	if schema != SchemaLegacy {
		return string(s), nil
	}
	switch s {
	case TaskOpen:
		return "todo", nil
	case TaskInProgress, TaskDone:
		return string(s), nil
	}
	return "", fmt.Errorf("%w: %q is not part of the legacy schema", ErrInvalidStatus, s)
}

// ItemStatusToken is StatusToken for item statuses.
func ItemStatusToken(s ItemStatus, schema Schema) (string, error) {
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	if schema != SchemaLegacy {
		return string(s), nil
	}
	return StatusToken(TaskStatus(s), schema)
}

// DeriveStatus computes an item's status from its tasks: no tasks or only
// open/plan tasks is open, all done is done, anything else is in-progress.
func DeriveStatus(statuses []TaskStatus) ItemStatus {
	if len(statuses) == 0 {
		return ItemOpen
	}

	allDone, allOpen := true, true
	for _, s := range statuses {
		if s != TaskDone {
			allDone = false
		}
		if s != TaskOpen && s != TaskPlan {
			allOpen = false
		}
	}

	switch {
	case allDone:
		return ItemDone
	case allOpen:
		return ItemOpen
	default:
		return ItemInProgress
	}
}
