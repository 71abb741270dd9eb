package workdir

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A task file with hand-written formatting the engine must not disturb.
const messyTask = "---\n" +
	"title:   \"Wire the form\"   # keep me\n" +
	"status:    open    # current state\n" +
	"priority: 2\n" +
	"depends_on:\n" +
	"  - \"001\"\n" +
	"assignee: alice\n" +
	"requires_human_review: false\n" +
	"expires_at: 2026-01-02T03:04:05Z\n" +
	"---\n" +
	"\n" +
	"## Description\n" +
	"\n" +
	"Tabs\tand  spaces   stay.\n" +
	"- [ ] not a criterion\n" +
	"\n" +
	"## Acceptance Criteria\n" +
	"\n" +
	"- [ ] not a criterion\n" +
	"- [x] second\n"

const depTask = "---\ntitle: Base\nstatus: done\npriority: 1\n---\n"

const (
	messySource = "work/001-a/002-form.md"
	depSource   = "work/001-a/001-base.md"
)

func loadMessy(t *testing.T) (*Document, string) {
	t.Helper()
	d, root := openDir(t, map[string]string{
		"work/001-a/index.md": itemA,
		depSource:             depTask,
		messySource:           messyTask,
	}, Options{})
	doc, err := Load(d, backlog.BuildOptions{})
	require.NoError(t, err)
	return doc, root
}

func TestChangeTaskStatusIsLocal(t *testing.T) {
	doc, root := loadMessy(t)

	status := backlog.TaskReview
	cs, err := doc.ChangeTask(messySource, TaskChange{Status: status})
	require.NoError(t, err)
	require.Len(t, cs.Patches, 1)
	require.NoError(t, doc.Commit(cs))

	want := strings.Replace(messyTask, "status:    open    # current state", "status:    review    # current state", 1)
	got := readFile(t, root, messySource)
	if diff := cmp.Diff(strings.Split(want, "\n"), strings.Split(got, "\n")); diff != "" {
		t.Fatalf("unexpected file change (-want +got):\n%s", diff)
	}

	tk, ok := doc.Model().Task(messySource)
	require.True(t, ok)
	assert.Equal(t, backlog.TaskReview, tk.Status)
	assert.Equal(t, "alice", tk.Assignee)
}

func TestChangeTaskDoneClearsAssignee(t *testing.T) {
	doc, root := loadMessy(t)

	cs, err := doc.ChangeTask(messySource, TaskChange{Status: backlog.TaskDone})
	require.NoError(t, err)
	assert.Len(t, cs.Patches, 3)

	after, ok := cs.After.Task(messySource)
	require.True(t, ok)
	assert.Empty(t, after.Assignee)
	assert.Nil(t, after.ExpiresAt)

	require.NoError(t, doc.Commit(cs))

	got := readFile(t, root, messySource)
	assert.Contains(t, got, "\nassignee: \n")
	assert.Contains(t, got, "\nexpires_at: \n")
	assert.Contains(t, got, "title:   \"Wire the form\"   # keep me\n")

	b, err := doc.dir.Scan(backlog.BuildOptions{})
	require.NoError(t, err)
	tk, ok := b.Task(messySource)
	require.True(t, ok)
	assert.Equal(t, backlog.TaskDone, tk.Status)
	assert.Empty(t, tk.Assignee)
	assert.Zero(t, b.Report.Count(backlog.CodeDoneWithAssignee))
	assert.Equal(t, backlog.ItemDone, b.Items[0].Status)

	name := "bob"
	_, err = doc.ChangeTask(messySource, TaskChange{Assignee: &name})
	require.ErrorIs(t, err, ErrInvalidChange)
}

func TestChangeTaskNoop(t *testing.T) {
	doc, root := loadMessy(t)

	same := "alice"
	cs, err := doc.ChangeTask(messySource, TaskChange{Status: backlog.TaskOpen, Assignee: &same})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	require.NoError(t, doc.Commit(cs))
	assert.Equal(t, messyTask, readFile(t, root, messySource))

	_, err = doc.ChangeTask("work/001-a/404-none.md", TaskChange{Status: backlog.TaskOpen})
	require.ErrorIs(t, err, backlog.ErrNotFound)

	_, err = doc.ChangeTask(messySource, TaskChange{Status: "sideways"})
	require.ErrorIs(t, err, backlog.ErrInvalidStatus)
}

func TestChangeTaskInsertsMissingFields(t *testing.T) {
	doc, root := loadMessy(t)

	name := "carol"
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cs, err := doc.ChangeTask(depSource, TaskChange{Status: backlog.TaskInProgress, Assignee: &name, ExpiresAt: &expires})
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))

	got := readFile(t, root, depSource)
	assert.Equal(t, "---\ntitle: Base\nstatus: in-progress\npriority: 1\nassignee: carol\nexpires_at: \"2026-03-01T12:00:00Z\"\n---\n", got)

	b, err := doc.dir.Scan(backlog.BuildOptions{})
	require.NoError(t, err)
	tk, _ := b.Task(depSource)
	assert.Equal(t, "carol", tk.Assignee)
	require.NotNil(t, tk.ExpiresAt)
	assert.True(t, expires.Equal(*tk.ExpiresAt))
}

func TestChangeTaskLegacySchema(t *testing.T) {
	d, root := openDir(t, map[string]string{
		"work/old/index.md": "---\ntitle: Old\nstatus: todo\n---\n",
		"work/old/001-x.md": "---\ntitle: X\nstatus: todo\npriority: 1\nschema_version: 1\n---\n",
	}, Options{})
	doc, err := Load(d, backlog.BuildOptions{})
	require.NoError(t, err)

	cs, err := doc.ChangeTask("work/old/001-x.md", TaskChange{Status: backlog.TaskInProgress})
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))
	assert.Contains(t, readFile(t, root, "work/old/001-x.md"), "status: in-progress\n")

	cs, err = doc.ChangeTask("work/old/001-x.md", TaskChange{Status: backlog.TaskOpen})
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))
	assert.Contains(t, readFile(t, root, "work/old/001-x.md"), "status: todo\n")

	_, err = doc.ChangeTask("work/old/001-x.md", TaskChange{Status: backlog.TaskReview})
	require.ErrorIs(t, err, backlog.ErrInvalidStatus)
}

func TestCommitRejectsStalePatch(t *testing.T) {
	doc, root := loadMessy(t)

	first, err := doc.ChangeTask(depSource, TaskChange{Status: backlog.TaskOpen})
	require.NoError(t, err)
	second, err := doc.ChangeTask(messySource, TaskChange{Status: backlog.TaskBlock})
	require.NoError(t, err)
	combined := Changeset{Patches: append(first.Patches, second.Patches...)}

	edited := strings.Replace(messyTask, "status:    open", "status: in-progress", 1)
	writeTree(t, root, map[string]string{messySource: edited})

	err = doc.Commit(combined)
	require.ErrorIs(t, err, ErrStalePatch)

	var stale *StalePatchError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, messySource, stale.File)

	assert.Equal(t, depTask, readFile(t, root, depSource), "no file is written when any patch is stale")
	assert.Equal(t, edited, readFile(t, root, messySource))
}

func TestCommitRejectsStaleFieldWhenBodyRepeatsIt(t *testing.T) {
	task := "---\ntitle: Docs\nstatus: open\npriority: 1\n---\n\n## Description\n\nExample front matter:\n\nstatus: open\n"
	source := "work/001-a/001-docs.md"
	d, root := openDir(t, map[string]string{
		"work/001-a/index.md": itemA,
		source:                task,
	}, Options{})
	doc, err := Load(d, backlog.BuildOptions{})
	require.NoError(t, err)

	cs, err := doc.ChangeTask(source, TaskChange{Status: backlog.TaskReview})
	require.NoError(t, err)

	edited := strings.Replace(task, "status: open\npriority", "status: block\npriority", 1)
	writeTree(t, root, map[string]string{source: edited})

	require.ErrorIs(t, doc.Commit(cs), ErrStalePatch)
	assert.Equal(t, edited, readFile(t, root, source), "the body line is never patched")
}

func TestChangeTaskLeavesBodyFieldLinesAlone(t *testing.T) {
	task := "---\ntitle: Docs\nstatus: open\npriority: 1\n---\n\n## Description\n\nstatus: open\n"
	source := "work/001-a/001-docs.md"
	d, root := openDir(t, map[string]string{
		"work/001-a/index.md": itemA,
		source:                task,
	}, Options{})
	doc, err := Load(d, backlog.BuildOptions{})
	require.NoError(t, err)

	cs, err := doc.ChangeTask(source, TaskChange{Status: backlog.TaskReview})
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))

	want := strings.Replace(task, "status: open\npriority", "status: review\npriority", 1)
	if diff := cmp.Diff(want, readFile(t, root, source)); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitRejectsRemovedFile(t *testing.T) {
	doc, root := loadMessy(t)

	cs, err := doc.ChangeTask(messySource, TaskChange{Status: backlog.TaskBlock})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, messySource)))

	require.ErrorIs(t, doc.Commit(cs), ErrStalePatch)
}

func TestCommitToleratesUnrelatedEdits(t *testing.T) {
	doc, root := loadMessy(t)

	cs, err := doc.ChangeTask(messySource, TaskChange{Status: backlog.TaskBlock})
	require.NoError(t, err)

	edited := messyTask + "- [ ] added by hand\n"
	writeTree(t, root, map[string]string{messySource: edited})

	require.NoError(t, doc.Commit(cs))
	got := readFile(t, root, messySource)
	assert.Contains(t, got, "status:    block    # current state")
	assert.Contains(t, got, "added by hand")
}

func TestChangeItem(t *testing.T) {
	d, root := openDir(t, map[string]string{
		"work/001-a/index.md": itemA,
	}, Options{})
	doc, err := Load(d, backlog.BuildOptions{})
	require.NoError(t, err)

	_, err = doc.ChangeItem("001-a", ItemChange{Status: backlog.ItemClaimed})
	require.ErrorIs(t, err, ErrInvalidChange)

	w := "planner"
	cs, err := doc.ChangeItem("001", ItemChange{Status: backlog.ItemClaimed, Assignee: &w})
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))
	assert.Equal(t, "---\ntitle: Alpha\nstatus: claimed\nassignee: planner\n---\n\n## Description\n\nFirst item.\n", readFile(t, root, "work/001-a/index.md"))

	cs, err = doc.ChangeItem("001-a", ItemChange{Status: backlog.ItemOpen})
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))
	assert.Equal(t, "---\ntitle: Alpha\nstatus: open\nassignee: \n---\n\n## Description\n\nFirst item.\n", readFile(t, root, "work/001-a/index.md"))

	_, err = doc.ChangeItem("404", ItemChange{Status: backlog.ItemOpen})
	require.ErrorIs(t, err, backlog.ErrNotFound)
}

func TestToggleCriterion(t *testing.T) {
	doc, root := loadMessy(t)

	cs, err := doc.ToggleCriterion(messySource, 0, true)
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))

	got := readFile(t, root, messySource)
	assert.Contains(t, got, "Tabs\tand  spaces   stay.\n- [ ] not a criterion\n", "the description line is untouched")
	assert.Contains(t, got, "## Acceptance Criteria\n\n- [x] not a criterion\n- [x] second\n")

	_, err = doc.ToggleCriterion(messySource, 2, true)
	require.ErrorIs(t, err, backlog.ErrNotFound)

	cs, err = doc.ToggleCriterion(messySource, 1, true)
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestReplaceContent(t *testing.T) {
	doc, root := loadMessy(t)

	_, err := doc.ReplaceContent(messySource, "no front matter")
	var perr *backlog.ParseError
	require.ErrorAs(t, err, &perr)

	_, err = doc.ReplaceContent("work/001-a/missing.md", "x")
	require.ErrorIs(t, err, backlog.ErrNotFound)

	_, err = doc.ReplaceContent("../escape.md", "x")
	require.ErrorIs(t, err, ErrInvalidSource)

	text := "---\ntitle: New\nstatus: plan\npriority: 3\n---\n"
	cs, err := doc.ReplaceContent(messySource, text)
	require.NoError(t, err)
	require.NoError(t, doc.Commit(cs))
	assert.Equal(t, text, readFile(t, root, messySource))
}

func TestChangesetDiff(t *testing.T) {
	doc, _ := loadMessy(t)

	cs, err := doc.ChangeTask(depSource, TaskChange{Status: backlog.TaskOpen})
	require.NoError(t, err)

	diff, err := cs.Diff()
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a/"+depSource)
	assert.Contains(t, diff, "+++ b/"+depSource)
	assert.Contains(t, diff, "-status: done\n")
	assert.Contains(t, diff, "+status: open\n")
}

func TestWatcherReportsEdits(t *testing.T) {
	d, root := openDir(t, map[string]string{"work/001-a/index.md": itemA}, Options{})

	w, err := NewWatcher(d, 20*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan []string, 4)
	go func() {
		_ = w.Run(ctx, func(sources []string) { changes <- sources })
	}()

	writeTree(t, root, map[string]string{
		"work/001-a/index.md": itemA + "\nmore\n",
		"work/001-a/.swp":     "ignored",
	})

	select {
	case got := <-changes:
		assert.Equal(t, []string{"work/001-a/index.md"}, got)
	case <-ctx.Done():
		t.Fatal("timeout waiting for change")
	}
}
