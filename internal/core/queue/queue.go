// Package queue serializes mutations against a backlog root. Every job runs
// to completion, one at a time, in the order it was submitted.
package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPanic wraps a panic recovered from a job.
var ErrPanic = errors.New("queued operation panicked")

// Observer is notified after each job with the time spent waiting in the
// queue, the time spent running, and the job's error.
type Observer func(root string, wait, run time.Duration, err error)

type job struct {
	ctx      context.Context
	fn       func(ctx context.Context) error
	queuedAt time.Time
	done     chan error
}

// Queue is a FIFO serializer bound to one backlog root. The zero value is
// not usable; use New or Registry.For.
type Queue struct {
	root     string
	log      zerolog.Logger
	observer Observer

	mu      sync.Mutex
	pending []*job
	running bool
}

// New creates a queue for root.
func New(root string, log zerolog.Logger, observer Observer) *Queue {
	return &Queue{
		root:     root,
		log:      log.With().Str("queue", root).Logger(),
		observer: observer,
	}
}

// Root returns the backlog root the queue serializes.
func (q *Queue) Root() string {
	return q.root
}

// Len returns the number of jobs waiting or running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}

// Enqueue submits fn and blocks until it has run, returning its error. The
// context is only checked before submission: once a job is queued it runs to
// completion and its context is detached from the caller's cancellation.
func (q *Queue) Enqueue(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j := &job{
		ctx:      context.WithoutCancel(ctx),
		fn:       fn,
		queuedAt: time.Now(),
		done:     make(chan error, 1),
	}

	q.mu.Lock()
	q.pending = append(q.pending, j)
	if !q.running {
		q.running = true
		go q.drain()
	}
	q.mu.Unlock()

	return <-j.done
}

// drain runs pending jobs until the queue is empty. Only one drain goroutine
// exists per queue at a time.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		started := time.Now()
		err := q.run(j)
		finished := time.Now()

		if q.observer != nil {
			q.observer(q.root, started.Sub(j.queuedAt), finished.Sub(started), err)
		}
		j.done <- err
	}
}

func (q *Queue) run(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("queued operation panicked")
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return j.fn(j.ctx)
}

// Do runs fn on q and returns its value.
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Enqueue(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Registry hands out one Queue per backlog root. Roots are compared after
// filepath.Clean.
type Registry struct {
	log      zerolog.Logger
	observer Observer

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRegistry creates an empty registry. observer may be nil.
func NewRegistry(log zerolog.Logger, observer Observer) *Registry {
	return &Registry{
		log:      log,
		observer: observer,
		queues:   make(map[string]*Queue),
	}
}

// For returns the queue for root, creating it on first use.
func (r *Registry) For(root string) *Queue {
	root = filepath.Clean(root)

	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[root]; ok {
		return q
	}
	q := New(root, r.log, r.observer)
	r.queues[root] = q
	return q
}
