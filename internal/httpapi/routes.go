package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/validate"
	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", s.app.Metrics.Handler())

	mux.HandleFunc("GET /api/backlog", s.getBacklog)

	mux.HandleFunc("PATCH /api/tasks/status", s.patchTaskStatus)
	mux.HandleFunc("PATCH /api/tasks/assignee", s.patchTaskAssignee)
	mux.HandleFunc("PATCH /api/tasks/criteria", s.patchTaskCriteria)
	mux.HandleFunc("DELETE /api/tasks", s.deleteTask)

	mux.HandleFunc("POST /api/items", s.postItem)
	mux.HandleFunc("PATCH /api/items/{slug}/status", s.patchItemStatus)
	mux.HandleFunc("PATCH /api/items/{slug}/assignee", s.patchItemAssignee)
	mux.HandleFunc("POST /api/items/{slug}/tasks", s.postTask)
	mux.HandleFunc("DELETE /api/items/{slug}", s.deleteItem)

	mux.HandleFunc("GET /api/files", s.getFile)
	mux.HandleFunc("PUT /api/files", s.putFile)

	mux.HandleFunc("POST /api/workers/report", s.postReport)
	mux.HandleFunc("GET /api/workers", s.getWorkers)
	mux.HandleFunc("GET /api/workers/{name}/history", s.getHistory)

	mux.HandleFunc("GET /api/assignments", s.getAssignments)
	mux.HandleFunc("POST /api/assignments", s.postAssignment)
}

// ChangeResponse describes the outcome of a patch request.
type ChangeResponse struct {
	// Applied is false for dry runs and no-op changes.
	Applied bool     `json:"applied"`
	Files   []string `json:"files"`
	Patches int      `json:"patches"`
	// Diff is set for dry runs.
	Diff string `json:"diff,omitempty"`
}

func changeResponse(cs workdir.Changeset, dryRun bool) (ChangeResponse, error) {
	resp := ChangeResponse{
		Applied: !dryRun && !cs.Empty(),
		Files:   cs.Files(),
		Patches: len(cs.Patches),
	}
	if dryRun {
		diff, err := cs.Diff()
		if err != nil {
			return ChangeResponse{}, err
		}
		resp.Diff = diff
	}
	return resp, nil
}

func (s *Server) respondChange(w http.ResponseWriter, r *http.Request, cs workdir.Changeset, dryRun bool, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := changeResponse(cs, dryRun)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, s.log.With().Ctx(r.Context()).Logger(), err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decode(w, r, s.opts.MaxBodyBytes, v); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getBacklog(w http.ResponseWriter, r *http.Request) {
	b, err := s.app.Backlog.Scan(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// TaskStatusRequest is the body of PATCH /api/tasks/status.
type TaskStatusRequest struct {
	Source string `json:"source"`
	Status string `json:"status"`
	DryRun bool   `json:"dryRun"`
}

func (req TaskStatusRequest) Validate() error {
	return criterio.ValidateStruct(
		validate.SourceField("source", req.Source),
		validate.RequiredField("status", req.Status),
	)
}

func (s *Server) patchTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req TaskStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := backlog.ParseTaskStatus(req.Status, backlog.SchemaCurrent)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cs, err := s.app.Backlog.ChangeTask(r.Context(), req.Source, workdir.TaskChange{Status: status}, req.DryRun)
	s.respondChange(w, r, cs, req.DryRun, err)
}

// TaskAssigneeRequest is the body of PATCH /api/tasks/assignee. An empty
// assignee clears it.
type TaskAssigneeRequest struct {
	Source   string `json:"source"`
	Assignee string `json:"assignee"`
	DryRun   bool   `json:"dryRun"`
}

func (req TaskAssigneeRequest) Validate() error {
	fields := []error{validate.SourceField("source", req.Source)}
	if req.Assignee != "" {
		fields = append(fields, validate.WorkerNameField("assignee", req.Assignee))
	}
	return criterio.ValidateStruct(fields...)
}

func (s *Server) patchTaskAssignee(w http.ResponseWriter, r *http.Request) {
	var req TaskAssigneeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	cs, err := s.app.Backlog.ChangeTask(r.Context(), req.Source, workdir.TaskChange{Assignee: &req.Assignee}, req.DryRun)
	s.respondChange(w, r, cs, req.DryRun, err)
}

// CriterionRequest is the body of PATCH /api/tasks/criteria.
type CriterionRequest struct {
	Source  string `json:"source"`
	Index   int    `json:"index"`
	Checked bool   `json:"checked"`
}

func (s *Server) patchTaskCriteria(w http.ResponseWriter, r *http.Request) {
	var req CriterionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := criterio.ValidateStruct(validate.SourceField("source", req.Source)); err != nil {
		s.fail(w, r, err)
		return
	}

	cs, err := s.app.Backlog.ToggleCriterion(r.Context(), req.Source, req.Index, req.Checked)
	s.respondChange(w, r, cs, false, err)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if err := criterio.ValidateStruct(validate.SourceField("source", source)); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.app.Backlog.DeleteTask(r.Context(), source); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ItemRequest is the body of POST /api/items.
type ItemRequest struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Context     string `json:"context"`
	Status      string `json:"status"`
}

func (s *Server) postItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := criterio.ValidateStruct(validate.RequiredField("title", req.Title)); err != nil {
		s.fail(w, r, err)
		return
	}

	spec := workdir.ItemSpec{
		Title:       req.Title,
		Type:        req.Type,
		Description: req.Description,
		Context:     req.Context,
	}
	if req.Status != "" {
		status, err := backlog.ParseItemStatus(req.Status, backlog.SchemaCurrent)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		spec.Status = status
	}

	it, err := s.app.Backlog.AddItem(r.Context(), spec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// ItemStatusRequest is the body of PATCH /api/items/{slug}/status.
type ItemStatusRequest struct {
	Status string `json:"status"`
	DryRun bool   `json:"dryRun"`
}

func (s *Server) patchItemStatus(w http.ResponseWriter, r *http.Request) {
	var req ItemStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := backlog.ParseItemStatus(req.Status, backlog.SchemaCurrent)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cs, err := s.app.Backlog.ChangeItem(r.Context(), r.PathValue("slug"), workdir.ItemChange{Status: status}, req.DryRun)
	s.respondChange(w, r, cs, req.DryRun, err)
}

// ItemAssigneeRequest is the body of PATCH /api/items/{slug}/assignee.
type ItemAssigneeRequest struct {
	Assignee string `json:"assignee"`
	DryRun   bool   `json:"dryRun"`
}

func (s *Server) patchItemAssignee(w http.ResponseWriter, r *http.Request) {
	var req ItemAssigneeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Assignee != "" {
		if err := criterio.ValidateStruct(validate.WorkerNameField("assignee", req.Assignee)); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	cs, err := s.app.Backlog.ChangeItem(r.Context(), r.PathValue("slug"), workdir.ItemChange{Assignee: &req.Assignee}, req.DryRun)
	s.respondChange(w, r, cs, req.DryRun, err)
}

// TaskRequest is the body of POST /api/items/{slug}/tasks.
type TaskRequest struct {
	Title               string   `json:"title"`
	Priority            int      `json:"priority"`
	DependsOn           []string `json:"dependsOn"`
	Description         string   `json:"description"`
	Criteria            []string `json:"criteria"`
	Assignee            string   `json:"assignee"`
	RequiresHumanReview bool     `json:"requiresHumanReview"`
	Status              string   `json:"status"`
}

func (s *Server) postTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	fields := []error{validate.RequiredField("title", req.Title)}
	if req.Assignee != "" {
		fields = append(fields, validate.WorkerNameField("assignee", req.Assignee))
	}
	if err := criterio.ValidateStruct(fields...); err != nil {
		s.fail(w, r, err)
		return
	}

	spec := workdir.TaskSpec{
		Title:               req.Title,
		Priority:            req.Priority,
		DependsOn:           req.DependsOn,
		Description:         req.Description,
		Criteria:            req.Criteria,
		Assignee:            req.Assignee,
		RequiresHumanReview: req.RequiresHumanReview,
	}
	if req.Status != "" {
		status, err := backlog.ParseTaskStatus(req.Status, backlog.SchemaCurrent)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		spec.Status = status
	}

	t, err := s.app.Backlog.AddTask(r.Context(), r.PathValue("slug"), spec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	archive, _ := strconv.ParseBool(r.URL.Query().Get("archive"))
	if err := s.app.Backlog.DeleteItem(r.Context(), r.PathValue("slug"), archive); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FileResponse carries the raw text of a backlog file.
type FileResponse struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if err := criterio.ValidateStruct(validate.SourceField("source", source)); err != nil {
		s.fail(w, r, err)
		return
	}
	content, err := s.app.Backlog.ReadFile(r.Context(), source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{Source: source, Content: content})
}

// FileRequest is the body of PUT /api/files.
type FileRequest struct {
	Content string `json:"content"`
}

func (s *Server) putFile(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if err := criterio.ValidateStruct(validate.SourceField("source", source)); err != nil {
		s.fail(w, r, err)
		return
	}
	var req FileRequest
	if !s.decode(w, r, &req) {
		return
	}

	cs, err := s.app.Backlog.ReplaceContent(r.Context(), source, req.Content)
	s.respondChange(w, r, cs, false, err)
}

func (s *Server) postReport(w http.ResponseWriter, r *http.Request) {
	var req worker.Report
	if !s.decode(w, r, &req) {
		return
	}
	fields := []error{validate.WorkerNameField("name", req.Name)}
	if req.Role != "" {
		fields = append(fields, validate.WorkerNameField("role", req.Role))
	}
	if err := criterio.ValidateStruct(fields...); err != nil {
		s.fail(w, r, err)
		return
	}

	state, err := s.app.Workers.Report(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// WorkersResponse lists known workers and their item claims.
type WorkersResponse struct {
	Workers []worker.State    `json:"workers"`
	Claims  map[string]string `json:"claims"`
}

func (s *Server) getWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, WorkersResponse{
		Workers: s.app.Workers.Workers(),
		Claims:  s.app.Workers.Coordinator().Claims(),
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(w, r, badRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events, err := s.app.Workers.History(r.Context(), r.PathValue("name"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, role := q.Get("worker"), q.Get("role")
	if err := criterio.ValidateStruct(validate.WorkerNameField("worker", name)); err != nil {
		s.fail(w, r, err)
		return
	}

	work, err := s.app.Workers.Work(r.Context(), name, strings.TrimSpace(role))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, work)
}

func (s *Server) postAssignment(w http.ResponseWriter, r *http.Request) {
	var req worker.Assignment
	if !s.decode(w, r, &req) {
		return
	}
	if err := criterio.ValidateStruct(validate.WorkerNameField("workerId", req.WorkerID)); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.app.Workers.Assign(r.Context(), req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}
