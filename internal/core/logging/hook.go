package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies worker, item and request ids from the event context
// onto log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if worker := GetWorker(ctx); worker != "" {
		e.Str("worker", worker)
	}
	if item := GetItem(ctx); item != "" {
		e.Str("item", item)
	}
	if id := GetRequestID(ctx); id != "" {
		e.Str("request_id", id)
	}
}
