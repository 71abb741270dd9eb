package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/pkg/executil"
)

// Job is one unit of work handed to an Agent. Exactly one of Task and Item
// is set; Item jobs are item-level work such as planning. Content is the raw
// text of the task file or item index.
type Job struct {
	ItemSlug string
	Task     *backlog.Task
	Item     *backlog.WorkItem
	Content  string
}

// Source returns the file the job is about.
func (j Job) Source() string {
	if j.Task != nil {
		return j.Task.Source
	}
	if j.Item != nil {
		return j.Item.Source
	}
	return ""
}

// Result is what an Agent reports back.
type Result struct {
	Success    bool           `json:"success"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
}

// Agent executes jobs. An error return means the agent could not run at
// all; a Result with Success false means it ran and failed.
type Agent interface {
	Execute(ctx context.Context, job Job) (Result, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, job Job) (Result, error)

func (f AgentFunc) Execute(ctx context.Context, job Job) (Result, error) {
	return f(ctx, job)
}

// ExecAgent runs an external command for every job. The job's file content
// is written to stdin and the task and item are exported as WORKBOARD_TASK
// and WORKBOARD_ITEM. A zero exit status is success. If the last non-empty
// line of stdout is a JSON object it becomes Result.Structured, and a
// boolean "success" key in it overrides the exit status.
type ExecAgent struct {
	Command []string
	Dir     string
	Exec    executil.Executor
}

// NewExecAgent creates an agent running command in dir.
func NewExecAgent(exec executil.Executor, dir string, command []string) (*ExecAgent, error) {
	if len(command) == 0 {
		return nil, errors.New("agent command is empty")
	}
	return &ExecAgent{Command: command, Dir: dir, Exec: exec}, nil
}

func (a *ExecAgent) Execute(ctx context.Context, job Job) (Result, error) {
	env := []string{"WORKBOARD_ITEM=" + job.ItemSlug}
	if job.Task != nil {
		env = append(env, "WORKBOARD_TASK="+job.Task.Source)
	}

	out, err := a.Exec.RunInput(ctx, executil.Input{
		Dir:   a.Dir,
		Env:   env,
		Stdin: strings.NewReader(job.Content),
	}, a.Command[0], a.Command[1:]...)

	res := Result{Success: err == nil, Output: string(out)}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("agent canceled: %w", ctx.Err())
		}
		res.Error = err.Error()
	}

	if structured, ok := trailingObject(out); ok {
		res.Structured = structured
		if v, ok := structured["success"].(bool); ok {
			res.Success = v
		}
		if msg, ok := structured["error"].(string); ok && msg != "" {
			res.Error = msg
		}
	}
	return res, nil
}

// trailingObject decodes the last non-empty line of out as a JSON object.
func trailingObject(out []byte) (map[string]any, bool) {
	out = bytes.TrimRight(out, " \t\r\n")
	if len(out) == 0 {
		return nil, false
	}
	line := out
	if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
		line = out[i+1:]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, false
	}
	return obj, true
}
