package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantKeys  []string
		wantEmpty []string
	}{
		{
			name: "worker and item",
			setupCtx: func() context.Context {
				ctx := WithWorker(context.Background(), "alice:dev")
				return WithItem(ctx, "001-a")
			},
			wantKeys:  []string{"worker", "item"},
			wantEmpty: []string{"request_id"},
		},
		{
			name: "only request id",
			setupCtx: func() context.Context {
				return WithRequestID(context.Background(), "r-1")
			},
			wantKeys:  []string{"request_id"},
			wantEmpty: []string{"worker", "item"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"worker", "item", "request_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(tt.setupCtx()).Msg("test")

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			for _, key := range tt.wantKeys {
				assert.Contains(t, entry, key)
			}
			for _, key := range tt.wantEmpty {
				assert.NotContains(t, entry, key)
			}
		})
	}
}
