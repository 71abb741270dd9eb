package eventbus_test

import (
	"testing"

	"github.com/colonyops/workboard/internal/core/eventbus"
	"github.com/colonyops/workboard/internal/core/eventbus/testbus"
	"github.com/rs/zerolog"
)

func TestRegisterDebugLogger(t *testing.T) {
	tb := testbus.New(t)

	// Registering with a nop logger must not panic.
	eventbus.RegisterDebugLogger(tb.EventBus, zerolog.Nop())

	tb.PublishBacklogChanged(eventbus.BacklogChangedPayload{
		Root:    "/srv/board",
		Reason:  eventbus.ReasonMutation,
		Sources: []string{"work/001-a/001-x.md"},
	})
	tb.PublishWorkerReported(eventbus.WorkerReportedPayload{Key: "w:dev", Status: "idle"})

	tb.AssertPublished(t, eventbus.EventWorkerReported)
}
