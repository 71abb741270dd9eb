package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetWorker(ctx))
	assert.Empty(t, GetItem(ctx))
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithWorker(ctx, "alice:dev")
	ctx = WithItem(ctx, "001-feat-login")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "alice:dev", GetWorker(ctx))
	assert.Equal(t, "001-feat-login", GetItem(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
}
