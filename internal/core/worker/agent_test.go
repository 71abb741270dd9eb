package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecAgentRequiresCommand(t *testing.T) {
	_, err := NewExecAgent(&executil.RecordingExecutor{}, "", nil)
	require.Error(t, err)
}

func TestExecAgent(t *testing.T) {
	tk := task("001-a", "002", backlog.TaskOpen, "w")
	job := Job{ItemSlug: "001-a", Task: &tk, Content: "---\ntitle: x\n---\n"}

	tests := []struct {
		name       string
		output     string
		err        error
		wantOK     bool
		wantErr    string
		structured bool
	}{
		{name: "plain success", output: "did the thing\n", wantOK: true},
		{name: "exit failure", output: "partial\n", err: errors.New("exit status 1"), wantOK: false, wantErr: "exit status 1"},
		{
			name:       "structured result",
			output:     "working\n{\"success\": true, \"files\": 3}\n",
			wantOK:     true,
			structured: true,
		},
		{
			name:       "structured failure overrides exit status",
			output:     "{\"success\": false, \"error\": \"tests failed\"}",
			wantOK:     false,
			wantErr:    "tests failed",
			structured: true,
		},
		{name: "trailing text is not structured", output: "{\"a\": 1}\ndone\n", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &executil.RecordingExecutor{
				Outputs: map[string][]byte{"agent": []byte(tt.output)},
				Errors:  map[string]error{"agent": tt.err},
			}
			a, err := NewExecAgent(rec, "/repo", []string{"agent", "--once"})
			require.NoError(t, err)

			res, err := a.Execute(context.Background(), job)
			require.NoError(t, err)

			assert.Equal(t, tt.wantOK, res.Success)
			assert.Equal(t, tt.output, res.Output)
			if tt.wantErr != "" {
				assert.Contains(t, res.Error, tt.wantErr)
			}
			assert.Equal(t, tt.structured, res.Structured != nil)

			require.Len(t, rec.Commands, 1)
			cmd := rec.Commands[0]
			assert.Equal(t, "/repo", cmd.Dir)
			assert.Equal(t, []string{"--once"}, cmd.Args)
			assert.Equal(t, job.Content, cmd.Stdin)
			assert.Contains(t, cmd.Env, "WORKBOARD_TASK="+tk.Source)
			assert.Contains(t, cmd.Env, "WORKBOARD_ITEM=001-a")
		})
	}
}

func TestJobSource(t *testing.T) {
	tk := task("001-a", "001", backlog.TaskOpen, "")
	it := item("001-a", backlog.ItemOpen, "")

	assert.Equal(t, tk.Source, Job{Task: &tk}.Source())
	assert.Equal(t, it.Source, Job{Item: &it}.Source())
	assert.Empty(t, Job{}.Source())
}
