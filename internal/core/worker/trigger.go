package worker

import (
	"context"
	"sync"
)

// Trigger is a broadcast wake-up signal. Every Notify releases all current
// waiters and re-arms for the next round; a notification with no waiters is
// not remembered.
type Trigger struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewTrigger returns an armed trigger.
func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{})}
}

// Arm returns a channel that is closed by the next Notify. Take the channel
// before checking for work so a notification in between is not missed.
func (t *Trigger) Arm() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch
}

// Notify wakes every waiter.
func (t *Trigger) Notify() {
	t.mu.Lock()
	defer t.mu.Unlock()
	close(t.ch)
	t.ch = make(chan struct{})
}

// Wait blocks until the next Notify or until ctx is done.
func (t *Trigger) Wait(ctx context.Context) error {
	select {
	case <-t.Arm():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
