package eventbus

// Notifier is signaled when new work may be available.
type Notifier interface {
	Notify()
}

// RegisterWaker notifies n whenever an event could make work available to
// an idle worker: a backlog change, a new assignment, or a reverted task.
func RegisterWaker(bus *EventBus, n Notifier) {
	if bus == nil || n == nil {
		return
	}

	bus.SubscribeBacklogChanged(func(BacklogChangedPayload) { n.Notify() })
	bus.SubscribeAssignmentCreated(func(AssignmentCreatedPayload) { n.Notify() })
	bus.SubscribeTaskReverted(func(TaskRevertedPayload) { n.Notify() })
}
