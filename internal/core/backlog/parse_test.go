package backlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTask = `---
title: Wire the login form
status: ip
priority: 2
depends_on: [1, "003"]
assignee: worker-a
requires_human_review: true
expires_at: 2026-03-01T12:00:00Z
---

## Description

Hook the form up to the session endpoint.

## Acceptance Criteria

- [x] form posts credentials
- [ ] errors are rendered
`

const sampleItem = `---
title: Login
status: claimed
assignee: planner-1
---

## Description

Users can sign in.

## Context

Follows the auth rewrite.
`

func TestParseTask(t *testing.T) {
	task, err := ParseTask(sampleTask, "001-feat-login", "work/001-feat-login/002-wire-form.md")
	require.NoError(t, err)

	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "002", task.TID)
	assert.Equal(t, "wire-form", task.Slug)
	assert.Equal(t, "Wire the login form", task.Name)
	assert.Equal(t, TaskInProgress, task.Status)
	assert.Equal(t, 2, task.Priority)
	assert.Equal(t, []string{"001", "003"}, task.DependsOn)
	assert.Equal(t, "worker-a", task.Assignee)
	assert.True(t, task.RequiresHumanReview)
	require.NotNil(t, task.ExpiresAt)
	assert.True(t, task.ExpiresAt.Equal(expires))
	assert.Equal(t, "Hook the form up to the session endpoint.", task.Description)
	assert.Equal(t, []Criterion{
		{Text: "form posts credentials", Checked: true},
		{Text: "errors are rendered"},
	}, task.AcceptanceCriteria)
	assert.Equal(t, "001-feat-login", task.ItemSlug)
	assert.Equal(t, SchemaCurrent, task.Schema)
}

func TestParseTaskErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		source  string
		wantErr error
		field   string
	}{
		{
			name:    "missing title",
			text:    "---\nstatus: open\npriority: 1\n---\n",
			source:  "work/a/001-x.md",
			wantErr: ErrMissingField,
			field:   KeyTitle,
		},
		{
			name:    "unknown status is not defaulted",
			text:    "---\ntitle: x\nstatus: later\npriority: 1\n---\n",
			source:  "work/a/001-x.md",
			wantErr: ErrInvalidStatus,
			field:   KeyStatus,
		},
		{
			name:    "missing priority",
			text:    "---\ntitle: x\nstatus: open\n---\n",
			source:  "work/a/001-x.md",
			wantErr: ErrMissingField,
			field:   KeyPriority,
		},
		{
			name:    "legacy schema rejects current-only status",
			text:    "---\ntitle: x\nstatus: review\npriority: 1\nschema_version: 1\n---\n",
			source:  "work/a/001-x.md",
			wantErr: ErrInvalidStatus,
			field:   KeyStatus,
		},
		{
			name:    "bad file name",
			text:    "---\ntitle: x\nstatus: open\npriority: 1\n---\n",
			source:  "work/a/notes.md",
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTask(tt.text, "a", tt.source)
			require.ErrorIs(t, err, tt.wantErr)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.source, pe.Source)
			assert.Equal(t, tt.field, pe.Field)
		})
	}

	t.Run("malformed metadata", func(t *testing.T) {
		_, err := ParseTask("---\ntitle: [oops\n---\n", "a", "work/a/001-x.md")
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("no front matter", func(t *testing.T) {
		_, err := ParseTask("# just text\n", "a", "work/a/001-x.md")
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})
}

func TestParseTaskLegacySchema(t *testing.T) {
	task, err := ParseTask("---\ntitle: x\nstatus: todo\npriority: 1\n---\n", "a", "work/a/001-x.md")
	require.NoError(t, err)
	assert.Equal(t, TaskOpen, task.Status)
	assert.Equal(t, SchemaLegacy, task.Schema)
}

func TestParseItem(t *testing.T) {
	item, err := ParseItem(sampleItem, "001-feat-login", "work/001-feat-login/index.md")
	require.NoError(t, err)

	assert.Equal(t, "001", item.ID)
	assert.Equal(t, "feat", item.Type)
	assert.Equal(t, "Login", item.Title)
	assert.Equal(t, ItemClaimed, item.Status)
	assert.Equal(t, ItemClaimed, item.DeclaredStatus)
	assert.Equal(t, "planner-1", item.Assignee)
	assert.Equal(t, "Users can sign in.", item.Description)
	assert.Equal(t, "Follows the auth rewrite.", item.Context)
	assert.Empty(t, item.Tasks)
	assert.Nil(t, item.LegacyTaskIDs)
}

func TestParseItemLegacyTable(t *testing.T) {
	text := "---\ntitle: Old\nstatus: todo\n---\n\n## Tasks\n\n| ID | Title |\n|---|---|\n| 1 | First |\n| 002 | Second |\n"
	item, err := ParseItem(text, "old-style", "work/old-style/index.md")
	require.NoError(t, err)

	assert.Empty(t, item.ID)
	assert.Equal(t, ItemOpen, item.Status)
	assert.Equal(t, SchemaLegacy, item.Schema)
	assert.Equal(t, []string{"001", "002"}, item.LegacyTaskIDs)
}

func TestParseItemRequiresStatus(t *testing.T) {
	_, err := ParseItem("---\ntitle: x\n---\n", "001-x", "work/001-x/index.md")
	require.ErrorIs(t, err, ErrMissingField)
}

func TestRoundTrip(t *testing.T) {
	task, err := ParseTask(sampleTask, "001-feat-login", "work/001-feat-login/002-wire-form.md")
	require.NoError(t, err)

	again, err := ParseTask(RenderTask(task), "001-feat-login", "work/001-feat-login/002-wire-form.md")
	require.NoError(t, err)
	assert.Equal(t, task, again)

	item, err := ParseItem(sampleItem, "001-feat-login", "work/001-feat-login/index.md")
	require.NoError(t, err)

	itemAgain, err := ParseItem(RenderItem(item), "001-feat-login", "work/001-feat-login/index.md")
	require.NoError(t, err)
	assert.Equal(t, item, itemAgain)
}

func TestRoundTripQuotedValues(t *testing.T) {
	task := Task{
		TID:                "001",
		Slug:               "x",
		Name:               `Fix "quotes": and \ slashes`,
		Status:             TaskOpen,
		Priority:           1,
		DependsOn:          []string{},
		AcceptanceCriteria: []Criterion{},
		ItemSlug:           "a",
		Source:             "work/a/001-x.md",
		Schema:             SchemaCurrent,
	}

	got, err := ParseTask(RenderTask(task), "a", "work/a/001-x.md")
	require.NoError(t, err)
	assert.Equal(t, task, got)
}
