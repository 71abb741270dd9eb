package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus delivers published events to subscribers on a single dispatch
// goroutine. Publishing never blocks: when the buffer is full the event is
// dropped and the OnDrop hooks fire.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size. Start must be called for
// events to be delivered.
func New(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is canceled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
}

// PublishBacklogChanged publishes EventBacklogChanged.
func (bus *EventBus) PublishBacklogChanged(p BacklogChangedPayload) {
	bus.send(EventBacklogChanged, p)
}

// SubscribeBacklogChanged registers fn for EventBacklogChanged.
func (bus *EventBus) SubscribeBacklogChanged(fn func(BacklogChangedPayload)) {
	bus.subscribe(EventBacklogChanged, func(p any) { fn(p.(BacklogChangedPayload)) })
}

// PublishAssignmentCreated publishes EventAssignmentCreated.
func (bus *EventBus) PublishAssignmentCreated(p AssignmentCreatedPayload) {
	bus.send(EventAssignmentCreated, p)
}

// SubscribeAssignmentCreated registers fn for EventAssignmentCreated.
func (bus *EventBus) SubscribeAssignmentCreated(fn func(AssignmentCreatedPayload)) {
	bus.subscribe(EventAssignmentCreated, func(p any) { fn(p.(AssignmentCreatedPayload)) })
}

// PublishWorkerReported publishes EventWorkerReported.
func (bus *EventBus) PublishWorkerReported(p WorkerReportedPayload) {
	bus.send(EventWorkerReported, p)
}

// SubscribeWorkerReported registers fn for EventWorkerReported.
func (bus *EventBus) SubscribeWorkerReported(fn func(WorkerReportedPayload)) {
	bus.subscribe(EventWorkerReported, func(p any) { fn(p.(WorkerReportedPayload)) })
}

// PublishTaskReverted publishes EventTaskReverted.
func (bus *EventBus) PublishTaskReverted(p TaskRevertedPayload) {
	bus.send(EventTaskReverted, p)
}

// SubscribeTaskReverted registers fn for EventTaskReverted.
func (bus *EventBus) SubscribeTaskReverted(fn func(TaskRevertedPayload)) {
	bus.subscribe(EventTaskReverted, func(p any) { fn(p.(TaskRevertedPayload)) })
}
