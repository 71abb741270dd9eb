package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/config"
	"github.com/colonyops/workboard/internal/core/eventbus/testbus"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/workboard"
	"github.com/colonyops/workboard/pkg/iojson"
)

type fixture struct {
	app    *workboard.App
	server *Server
	root   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.DataDir = t.TempDir()

	bus := testbus.New(t)
	app, err := workboard.NewApp(&cfg, bus.EventBus, nil, zerolog.Nop())
	require.NoError(t, err)

	srv := New(app, Options{Addr: "127.0.0.1:0", MaxBodyBytes: 4096}, zerolog.Nop())
	return &fixture{app: app, server: srv, root: cfg.Root}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) addItem(t *testing.T, title string) backlog.WorkItem {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/items", ItemRequest{Title: title, Type: "feat"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var it backlog.WorkItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	return it
}

func (f *fixture) addTask(t *testing.T, slug, title string) backlog.Task {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/items/"+slug+"/tasks", TaskRequest{Title: title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task backlog.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	return task
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) iojson.Error {
	t.Helper()
	var e iojson.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestBacklogListsCreatedWork(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")
	task := f.addTask(t, it.Slug, "Write form")

	rec := f.do(t, http.MethodGet, "/api/backlog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var b backlog.Backlog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.Len(t, b.Items, 1)
	require.Len(t, b.Tasks, 1)
	assert.Equal(t, task.Source, b.Tasks[0].Source)
	assert.Equal(t, backlog.TaskOpen, b.Tasks[0].Status)
}

func TestPatchTaskStatus(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")
	task := f.addTask(t, it.Slug, "Write form")

	t.Run("dry run returns diff and leaves file", func(t *testing.T) {
		before, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(task.Source)))
		require.NoError(t, err)

		rec := f.do(t, http.MethodPatch, "/api/tasks/status", TaskStatusRequest{Source: task.Source, Status: "review", DryRun: true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ChangeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Applied)
		assert.Contains(t, resp.Diff, "+status: review")

		after, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(task.Source)))
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("alias is accepted", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/tasks/status", TaskStatusRequest{Source: task.Source, Status: "blocked"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ChangeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Applied)
		assert.Equal(t, []string{task.Source}, resp.Files)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/tasks/status", TaskStatusRequest{Source: task.Source, Status: "sideways"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, iojson.ReasonInvalid, decodeError(t, rec).Reason())
	})

	t.Run("unknown task is not found", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/tasks/status", TaskStatusRequest{Source: "work/nope/001-x.md", Status: "done"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, iojson.ReasonNotFound, decodeError(t, rec).Reason())
	})
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		field  string
	}{
		{
			name:   "missing source",
			method: http.MethodPatch,
			target: "/api/tasks/status",
			body:   TaskStatusRequest{Status: "done"},
			field:  "source",
		},
		{
			name:   "escaping source",
			method: http.MethodPatch,
			target: "/api/tasks/assignee",
			body:   TaskAssigneeRequest{Source: "../etc/passwd.md", Assignee: "alice"},
			field:  "source",
		},
		{
			name:   "bad assignee",
			method: http.MethodPatch,
			target: "/api/tasks/assignee",
			body:   TaskAssigneeRequest{Source: "work/a/001-b.md", Assignee: "a:b"},
			field:  "assignee",
		},
		{
			name:   "missing title",
			method: http.MethodPost,
			target: "/api/items",
			body:   ItemRequest{Type: "feat"},
			field:  "title",
		},
		{
			name:   "missing worker",
			method: http.MethodGet,
			target: "/api/assignments",
			field:  "worker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			e := decodeError(t, rec)
			assert.Equal(t, iojson.ReasonInvalid, e.Reason())
			fields, ok := e.Data["fields"].(map[string]any)
			require.True(t, ok, "fields missing: %v", e.Data)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestDecodeRejectsBadBodies(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "unknown field", body: `{"source":"work/a/001-b.md","status":"done","extra":1}`},
		{name: "too large", body: `{"source":"` + strings.Repeat("a", 5000) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/tasks/status", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.server.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFilesRoundTrip(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")
	task := f.addTask(t, it.Slug, "Write form")

	rec := f.do(t, http.MethodGet, "/api/files?source="+task.Source, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var file FileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	assert.Equal(t, task.Source, file.Source)

	updated := strings.Replace(file.Content, "status: open", "status: review", 1)
	rec = f.do(t, http.MethodPut, "/api/files?source="+task.Source, FileRequest{Content: updated})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(task.Source)))
	require.NoError(t, err)
	assert.Equal(t, updated, string(data))
}

func TestCriteriaToggle(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")

	rec := f.do(t, http.MethodPost, "/api/items/"+it.Slug+"/tasks", TaskRequest{
		Title:    "Write form",
		Criteria: []string{"renders", "submits"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task backlog.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))

	rec = f.do(t, http.MethodPatch, "/api/tasks/criteria", CriterionRequest{Source: task.Source, Index: 1, Checked: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	b, err := f.app.Backlog.Scan(context.Background())
	require.NoError(t, err)
	got, ok := b.Task(task.Source)
	require.True(t, ok)
	require.Len(t, got.AcceptanceCriteria, 2)
	assert.False(t, got.AcceptanceCriteria[0].Checked)
	assert.True(t, got.AcceptanceCriteria[1].Checked)
}

func TestItemStatusAndDelete(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")

	rec := f.do(t, http.MethodPatch, "/api/items/"+it.Slug+"/status", ItemStatusRequest{Status: "plan"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/items/"+it.Slug+"?archive=1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/items/"+it.Slug, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignmentFlow(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")
	task := f.addTask(t, it.Slug, "Write form")

	rec := f.do(t, http.MethodPost, "/api/assignments", worker.Assignment{WorkerID: "alice", TaskID: task.Source})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/assignments?worker=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var work worker.Work
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &work))
	require.Len(t, work.Tasks, 1)
	assert.Equal(t, task.Source, work.Tasks[0].Source)

	rec = f.do(t, http.MethodPost, "/api/workers/report", worker.Report{
		Name:   "alice",
		Status: worker.StatusInProgress,
		TaskID: task.Source,
		Logs:   []string{"starting"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var workers WorkersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workers))
	require.Len(t, workers.Workers, 1)
	assert.Equal(t, "alice", workers.Workers[0].Name)
	assert.Equal(t, worker.StatusInProgress, workers.Workers[0].Status)
}

func TestItemClaimConflict(t *testing.T) {
	f := newFixture(t)
	it := f.addItem(t, "Login page")

	report := func(name string) *httptest.ResponseRecorder {
		return f.do(t, http.MethodPost, "/api/workers/report", worker.Report{
			Name:   name,
			Role:   worker.RolePlanner,
			Status: worker.StatusInProgress,
			ItemID: it.Slug,
		})
	}

	require.Equal(t, http.StatusOK, report("a").Code)

	rec := report("b")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, iojson.ReasonAlreadyClaimed, decodeError(t, rec).Reason())
}

func TestHistoryWithoutDatabase(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/workers/alice/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/workers/alice/history?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/health", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "workboard_http_requests_total")
}

func TestServerStartAndShutdown(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.server.Start(context.Background()))
	require.NotEmpty(t, f.server.Addr())

	resp, err := http.Get("http://" + f.server.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, f.server.Shutdown(ctx))
}
