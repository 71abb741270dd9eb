// Package backlog defines the work item and task model of a markdown backlog,
// the parser that builds it from file text, and the cross-link validator that
// checks it. Everything in this package is pure: text in, values out.
package backlog

import (
	"time"
)

// IndexFile is the metadata file of every item folder.
const IndexFile = "index.md"

// FeedbackSuffix marks a task's optional feedback companion file.
const FeedbackSuffix = "-feedback.md"

// ManifestFile is the derived snapshot kept at the top of the work dir.
const ManifestFile = "manifest.json"

// WorkItem is a top-level unit of work backed by a folder.
type WorkItem struct {
	// ID is the numeric prefix of the slug; empty for legacy folders.
	ID   string `json:"id,omitempty"`
	Slug string `json:"slug"`
	// Type is the conventional-commit tag encoded in the slug.
	Type  string `json:"type,omitempty"`
	Title string `json:"title"`
	// Status is the effective status used for display and routing.
	Status ItemStatus `json:"status"`
	// DeclaredStatus is the value written in index.md.
	DeclaredStatus ItemStatus `json:"declaredStatus,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	Description    string     `json:"description,omitempty"`
	Context        string     `json:"context,omitempty"`
	// Tasks are task sources in file name order.
	Tasks  []string `json:"tasks"`
	Source string   `json:"source"`
	Schema Schema   `json:"schema"`

	// LegacyTaskIDs are the ids listed in an old-style "## Tasks" table.
	LegacyTaskIDs []string `json:"-"`
}

// Criterion is one acceptance criteria checklist entry.
type Criterion struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Task is an executable unit of work backed by a file in its item's folder.
type Task struct {
	TID                 string      `json:"tid"`
	Priority            int         `json:"priority"`
	Slug                string      `json:"slug"`
	Name                string      `json:"name"`
	Status              TaskStatus  `json:"status"`
	DependsOn           []string    `json:"dependsOn"`
	Assignee            string      `json:"assignee,omitempty"`
	RequiresHumanReview bool        `json:"requiresHumanReview"`
	ExpiresAt           *time.Time  `json:"expiresAt,omitempty"`
	Description         string      `json:"description,omitempty"`
	AcceptanceCriteria  []Criterion `json:"acceptanceCriteria"`
	Feedback            string      `json:"feedback,omitempty"`
	FeedbackSource      string      `json:"feedbackSource,omitempty"`
	ItemSlug            string      `json:"itemSlug"`
	Source              string      `json:"source"`
	Schema              Schema      `json:"schema"`
}

// Backlog is a validated snapshot of the whole work dir. It is rebuilt from
// disk on every read and never persisted.
type Backlog struct {
	Items  []WorkItem `json:"items"`
	Tasks  []Task     `json:"tasks"`
	Report Report     `json:"report"`
	// Failed lists sources that could not be parsed.
	Failed []string `json:"failed"`
}

// Item returns the item with the given slug or id.
func (b Backlog) Item(key string) (WorkItem, bool) {
	for _, it := range b.Items {
		if it.Slug == key || (it.ID != "" && it.ID == key) {
			return it, true
		}
	}
	return WorkItem{}, false
}

// Task returns the task with the given source.
func (b Backlog) Task(source string) (Task, bool) {
	for _, t := range b.Tasks {
		if t.Source == source {
			return t, true
		}
	}
	return Task{}, false
}

// TasksOf returns the tasks of an item in file name order.
func (b Backlog) TasksOf(slug string) []Task {
	var out []Task
	for _, t := range b.Tasks {
		if t.ItemSlug == slug {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot is the raw text of a work dir keyed by slash-separated paths that
// start with the work dir name, e.g. "work/001-feat-login/index.md".
type Snapshot struct {
	WorkDir string
	// Folders are the item folder names, sorted.
	Folders []string
	// Files maps paths to file content.
	Files map[string]string
}

// Path joins a folder and file name into a snapshot key.
func (s Snapshot) Path(folder, name string) string {
	if name == "" {
		return s.WorkDir + "/" + folder
	}
	return s.WorkDir + "/" + folder + "/" + name
}

// Clone returns a copy of s whose Files map can be modified independently.
func (s Snapshot) Clone() Snapshot {
	files := make(map[string]string, len(s.Files))
	for k, v := range s.Files {
		files[k] = v
	}
	return Snapshot{
		WorkDir: s.WorkDir,
		Folders: append([]string(nil), s.Folders...),
		Files:   files,
	}
}
