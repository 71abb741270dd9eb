package workdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/markdown"
)

// ErrInvalidChange is returned for a change that would break a model
// invariant, such as assigning a done task.
var ErrInvalidChange = errors.New("invalid change")

// Document is a loaded snapshot of the work dir plus the model built from it.
// Change methods compute changesets against the snapshot without touching
// disk; Commit writes them.
type Document struct {
	dir   *Dir
	opts  backlog.BuildOptions
	snap  backlog.Snapshot
	model backlog.Backlog
}

// Load reads the work dir of d into a Document.
func Load(d *Dir, opts backlog.BuildOptions) (*Document, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Document{
		dir:   d,
		opts:  opts,
		snap:  snap,
		model: backlog.Build(snap, opts),
	}, nil
}

// Model returns the model as of load or the last commit.
func (doc *Document) Model() backlog.Backlog {
	return doc.model
}

// Content returns the loaded text of a file.
func (doc *Document) Content(source string) (string, bool) {
	t, ok := doc.snap.Files[source]
	return t, ok
}

// TaskChange describes an update to a task's front matter. Zero fields are
// left unchanged.
type TaskChange struct {
	Status      backlog.TaskStatus
	Assignee    *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// ChangeTask computes the patches for ch. Moving a task to done also clears
// its assignee and expiry in the same changeset.
func (doc *Document) ChangeTask(source string, ch TaskChange) (Changeset, error) {
	t, ok := doc.model.Task(source)
	if !ok {
		return Changeset{}, backlog.NotFound("task", source)
	}

	ed := newEditor(doc.snap.Files)

	status := t.Status
	if ch.Status != "" {
		token, err := backlog.StatusToken(ch.Status, t.Schema)
		if err != nil {
			return Changeset{}, err
		}
		if ch.Status != t.Status {
			if err := ed.setField(source, backlog.KeyStatus, token, "status "+string(ch.Status)); err != nil {
				return Changeset{}, err
			}
		}
		status = ch.Status
	}

	if status == backlog.TaskDone {
		if ch.Assignee != nil && *ch.Assignee != "" {
			return Changeset{}, fmt.Errorf("%w: a done task cannot have an assignee", ErrInvalidChange)
		}
		if err := ed.setField(source, backlog.KeyAssignee, "", "clear assignee"); err != nil {
			return Changeset{}, err
		}
		if t.ExpiresAt != nil {
			if err := ed.setField(source, backlog.KeyExpiresAt, "", "clear expiry"); err != nil {
				return Changeset{}, err
			}
		}
		return doc.finish(ed)
	}

	if ch.Assignee != nil && *ch.Assignee != t.Assignee {
		if err := ed.setField(source, backlog.KeyAssignee, *ch.Assignee, "assignee "+*ch.Assignee); err != nil {
			return Changeset{}, err
		}
	}

	switch {
	case ch.ClearExpiry && t.ExpiresAt != nil:
		if err := ed.setField(source, backlog.KeyExpiresAt, "", "clear expiry"); err != nil {
			return Changeset{}, err
		}
	case ch.ExpiresAt != nil && (t.ExpiresAt == nil || !t.ExpiresAt.Equal(*ch.ExpiresAt)):
		v := ch.ExpiresAt.UTC().Format(time.RFC3339)
		if err := ed.setField(source, backlog.KeyExpiresAt, v, "expires "+v); err != nil {
			return Changeset{}, err
		}
	}

	return doc.finish(ed)
}

// ItemChange describes an update to an item's front matter.
type ItemChange struct {
	Status   backlog.ItemStatus
	Assignee *string
}

// ChangeItem computes the patches for ch against the item's declared status.
// Moving an item to open or done clears its assignee; claimed requires one.
func (doc *Document) ChangeItem(key string, ch ItemChange) (Changeset, error) {
	it, ok := doc.model.Item(key)
	if !ok {
		return Changeset{}, backlog.NotFound("item", key)
	}

	ed := newEditor(doc.snap.Files)

	status := it.DeclaredStatus
	if ch.Status != "" {
		token, err := backlog.ItemStatusToken(ch.Status, it.Schema)
		if err != nil {
			return Changeset{}, err
		}
		if ch.Status != it.DeclaredStatus {
			if err := ed.setField(it.Source, backlog.KeyStatus, token, "status "+string(ch.Status)); err != nil {
				return Changeset{}, err
			}
		}
		status = ch.Status
	}

	assignee := it.Assignee
	if ch.Assignee != nil {
		assignee = *ch.Assignee
	}
	if status == backlog.ItemOpen || status == backlog.ItemDone {
		if ch.Assignee != nil && *ch.Assignee != "" {
			return Changeset{}, fmt.Errorf("%w: an %s item cannot have an assignee", ErrInvalidChange, status)
		}
		assignee = ""
	}
	if status == backlog.ItemClaimed && assignee == "" {
		return Changeset{}, fmt.Errorf("%w: a claimed item needs an assignee", ErrInvalidChange)
	}

	if assignee != it.Assignee {
		if err := ed.setField(it.Source, backlog.KeyAssignee, assignee, "assignee "+assignee); err != nil {
			return Changeset{}, err
		}
	}

	return doc.finish(ed)
}

// ReplaceContent computes a whole-file replacement. Task and item files must
// still parse after the change.
func (doc *Document) ReplaceContent(source, text string) (Changeset, error) {
	if _, err := doc.dir.resolve(source); err != nil {
		return Changeset{}, err
	}
	original, ok := doc.snap.Files[source]
	if !ok || !strings.HasSuffix(source, ".md") {
		return Changeset{}, backlog.NotFound("file", source)
	}

	folder := path.Base(path.Dir(source))
	name := path.Base(source)
	switch {
	case name == backlog.IndexFile:
		if _, err := backlog.ParseItem(text, folder, source); err != nil {
			return Changeset{}, err
		}
	case backlog.IsTaskFile(name):
		if _, err := backlog.ParseTask(text, folder, source); err != nil {
			return Changeset{}, err
		}
	}

	ed := newEditor(doc.snap.Files)
	ed.replace(source, original, text, "replace content")
	return doc.finish(ed)
}

// ToggleCriterion sets the checked state of the index-th acceptance
// criterion of a task, counting from zero.
func (doc *Document) ToggleCriterion(source string, index int, checked bool) (Changeset, error) {
	t, ok := doc.model.Task(source)
	if !ok {
		return Changeset{}, backlog.NotFound("task", source)
	}
	if index < 0 || index >= len(t.AcceptanceCriteria) {
		return Changeset{}, backlog.NotFound("criterion", fmt.Sprintf("%s#%d", source, index))
	}

	content := doc.snap.Files[source]
	start, end, ok := markdown.SectionBounds(content, backlog.SectionCriteria)
	if !ok {
		return Changeset{}, backlog.NotFound("criterion", fmt.Sprintf("%s#%d", source, index))
	}

	ed := newEditor(doc.snap.Files)
	n := 0
	offset := start
	for offset < end {
		lineEnd := end
		if i := strings.IndexByte(content[offset:end], '\n'); i >= 0 {
			lineEnd = offset + i
		}
		line := content[offset:lineEnd]
		if markdown.IsChecklistLine(line) {
			if n == index {
				// Include the section heading so an identical line elsewhere
				// in the file cannot match.
				ed.replace(source,
					content[start:lineEnd],
					content[start:offset]+markdown.SetChecked(line, checked),
					fmt.Sprintf("criterion %d", index))
				break
			}
			n++
		}
		offset = lineEnd + 1
	}

	return doc.finish(ed)
}

func (doc *Document) finish(ed *editor) (Changeset, error) {
	cs := Changeset{
		Patches: ed.patches,
		Before:  doc.model,
		After:   doc.model,
		texts:   make(map[string][2]string),
	}
	if len(ed.patches) == 0 {
		return cs, nil
	}

	snap := doc.snap.Clone()
	for file, text := range ed.working {
		cs.texts[file] = [2]string{doc.snap.Files[file], text}
		snap.Files[file] = text
	}
	cs.After = backlog.Build(snap, doc.opts)
	return cs, nil
}

// Commit applies cs to disk. Every touched file is re-read and checked
// before anything is written, so a stale patch leaves all files untouched.
// Patches for the same file are coalesced into one write. After a
// successful commit the document's model is cs.After.
func (doc *Document) Commit(cs Changeset) error {
	if cs.Empty() {
		return nil
	}

	files := cs.Files()
	next := make(map[string]string, len(files))
	for _, file := range files {
		p, err := doc.dir.resolve(file)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &StalePatchError{File: file, Description: "file was removed"}
			}
			return fmt.Errorf("read %s: %w", file, err)
		}
		content, err := apply(file, string(data), cs.Patches)
		if err != nil {
			return err
		}
		next[file] = content
	}

	for _, file := range files {
		if err := writeFile(doc.dir.abs(file), next[file]); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		doc.snap.Files[file] = next[file]
	}

	doc.model = cs.After
	return nil
}
