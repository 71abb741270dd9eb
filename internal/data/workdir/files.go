package workdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/natefinch/atomic"
)

// ErrExists is returned when a create or archive target already exists.
var ErrExists = errors.New("already exists")

func writeFile(p, content string) error {
	return atomic.WriteFile(p, strings.NewReader(content))
}

// ItemSpec is the input for AddItem.
type ItemSpec struct {
	Title       string
	Type        string
	Description string
	Context     string
	// Status defaults to open.
	Status backlog.ItemStatus
}

// AddItem creates a new item folder with the next free id. Archived folders
// count towards the id so ids are never reused.
func (d *Dir) AddItem(spec ItemSpec) (backlog.WorkItem, error) {
	if strings.TrimSpace(spec.Title) == "" {
		return backlog.WorkItem{}, fmt.Errorf("%w: title is required", backlog.ErrMissingField)
	}
	if spec.Status == "" {
		spec.Status = backlog.ItemOpen
	}
	if !spec.Status.IsValid() {
		return backlog.WorkItem{}, fmt.Errorf("%w: %q", backlog.ErrInvalidStatus, spec.Status)
	}
	if spec.Status == backlog.ItemClaimed {
		return backlog.WorkItem{}, fmt.Errorf("%w: a new item cannot be claimed", ErrInvalidChange)
	}

	var ids []string
	for _, dir := range []string{d.abs(d.opts.WorkDir), d.abs(d.opts.ArchiveDir)} {
		entries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return backlog.WorkItem{}, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, e := range entries {
			if s, ok := backlog.ParseItemSlug(e.Name()); ok && e.IsDir() {
				ids = append(ids, s.ID)
			}
		}
	}

	folder, err := backlog.ItemFolder(backlog.NextID(ids), spec.Type, spec.Title)
	if err != nil {
		return backlog.WorkItem{}, err
	}

	source := d.opts.WorkDir + "/" + folder + "/" + backlog.IndexFile
	text := backlog.RenderItem(backlog.WorkItem{
		Title:          strings.TrimSpace(spec.Title),
		DeclaredStatus: spec.Status,
		Description:    spec.Description,
		Context:        spec.Context,
	})

	dir := d.abs(d.opts.WorkDir + "/" + folder)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return backlog.WorkItem{}, fmt.Errorf("item folder %s: %w", folder, ErrExists)
		}
		return backlog.WorkItem{}, fmt.Errorf("create item folder: %w", err)
	}
	if err := writeFile(d.abs(source), text); err != nil {
		_ = os.RemoveAll(dir)
		return backlog.WorkItem{}, fmt.Errorf("write %s: %w", source, err)
	}

	return backlog.ParseItem(text, folder, source)
}

// TaskSpec is the input for AddTask.
type TaskSpec struct {
	Title               string
	Priority            int
	DependsOn           []string
	Description         string
	Criteria            []string
	Assignee            string
	RequiresHumanReview bool
	// Status defaults to open.
	Status backlog.TaskStatus
}

// AddTask creates the next task file in an item folder. A zero priority
// defaults to the new tid's number.
func (d *Dir) AddTask(itemSlug string, spec TaskSpec) (backlog.Task, error) {
	if strings.TrimSpace(spec.Title) == "" {
		return backlog.Task{}, fmt.Errorf("%w: title is required", backlog.ErrMissingField)
	}
	if spec.Status == "" {
		spec.Status = backlog.TaskOpen
	}
	if !spec.Status.IsValid() {
		return backlog.Task{}, fmt.Errorf("%w: %q", backlog.ErrInvalidStatus, spec.Status)
	}
	if spec.Status == backlog.TaskDone && spec.Assignee != "" {
		return backlog.Task{}, fmt.Errorf("%w: a done task cannot have an assignee", ErrInvalidChange)
	}

	folder, err := d.itemFolder(itemSlug)
	if err != nil {
		return backlog.Task{}, err
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return backlog.Task{}, fmt.Errorf("list %s: %w", itemSlug, err)
	}

	var tids []string
	for _, e := range entries {
		if tid, _, ok := backlog.ParseTaskFile(e.Name()); ok {
			tids = append(tids, tid)
		}
	}
	next := backlog.NextID(tids)
	if spec.Priority == 0 {
		spec.Priority = next
	}

	deps := make([]string, 0, len(spec.DependsOn))
	for _, dep := range spec.DependsOn {
		deps = append(deps, backlog.NormalizeTID(dep))
	}
	criteria := make([]backlog.Criterion, 0, len(spec.Criteria))
	for _, c := range spec.Criteria {
		criteria = append(criteria, backlog.Criterion{Text: c})
	}

	name := backlog.TaskFileName(next, spec.Title)
	source := d.opts.WorkDir + "/" + itemSlug + "/" + name
	text := backlog.RenderTask(backlog.Task{
		Name:                strings.TrimSpace(spec.Title),
		Status:              spec.Status,
		Priority:            spec.Priority,
		DependsOn:           deps,
		Assignee:            spec.Assignee,
		RequiresHumanReview: spec.RequiresHumanReview,
		Description:         spec.Description,
		AcceptanceCriteria:  criteria,
	})

	p := d.abs(source)
	if _, err := os.Stat(p); err == nil {
		return backlog.Task{}, fmt.Errorf("task %s: %w", source, ErrExists)
	}
	if err := writeFile(p, text); err != nil {
		return backlog.Task{}, fmt.Errorf("write %s: %w", source, err)
	}

	return backlog.ParseTask(text, itemSlug, source)
}

// DeleteTask removes a task file and its feedback companion.
func (d *Dir) DeleteTask(source string) error {
	p, err := d.resolve(source)
	if err != nil {
		return err
	}
	if !backlog.IsTaskFile(path.Base(source)) {
		return fmt.Errorf("%w: %q is not a task file", ErrInvalidSource, source)
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return backlog.NotFound("task", source)
		}
		return fmt.Errorf("remove %s: %w", source, err)
	}

	feedback := filepath.Join(filepath.Dir(p), backlog.FeedbackName(filepath.Base(p)))
	if err := os.Remove(feedback); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove feedback of %s: %w", source, err)
	}
	return nil
}

// DeleteItem removes an item folder, or moves it below the archive dir when
// archive is set.
func (d *Dir) DeleteItem(slug string, archive bool) error {
	folder, err := d.itemFolder(slug)
	if err != nil {
		return err
	}

	if !archive {
		if err := os.RemoveAll(folder); err != nil {
			return fmt.Errorf("remove item %s: %w", slug, err)
		}
		return nil
	}

	archiveDir := d.abs(d.opts.ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	target := filepath.Join(archiveDir, slug)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("archive %s: %w", slug, ErrExists)
	}
	if err := os.Rename(folder, target); err != nil {
		return fmt.Errorf("archive item %s: %w", slug, err)
	}
	return nil
}

func (d *Dir) itemFolder(slug string) (string, error) {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return "", fmt.Errorf("%w: item %q", ErrInvalidSource, slug)
	}
	p := d.abs(d.opts.WorkDir + "/" + slug)
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return "", backlog.NotFound("item", slug)
	}
	return p, nil
}

// WriteManifest regenerates the manifest from b.
func (d *Dir) WriteManifest(b backlog.Backlog, now time.Time) (backlog.Manifest, error) {
	m := backlog.NewManifest(b, now)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFile(d.abs(d.ManifestSource()), string(data)+"\n"); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}
