package bridge

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO. push never blocks.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{wake: make(chan struct{}, 1)}
}

func (q *queue[T]) push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop waits for the oldest item. It reports false once ctx is done.
func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-q.wake:
		}
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Loop runs posted work one item at a time on a single goroutine. Everything the loop runs may share state
// without locks.
type Loop struct {
	q *queue[func(ctx context.Context) error]
}

func NewLoop() *Loop {
	return &Loop{q: newQueue[func(ctx context.Context) error]()}
}

// Post queues fn to run on the loop. It never blocks and may be called from any goroutine.
func (l *Loop) Post(fn func(ctx context.Context) error) {
	l.q.push(fn)
}

// Run runs posted work in order until ctx is done or an item fails, returning that item's error.
func (l *Loop) Run(ctx context.Context) error {
	for {
		fn, ok := l.q.pop(ctx)
		if !ok {
			return nil
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
}

type command struct {
	name string
	run  func(ctx context.Context) error
}

// Worker runs commands on a Loop strictly one after another, in the order they were enqueued. A command
// is not started until the previous one has finished.
type Worker struct {
	q    *queue[command]
	loop *Loop
}

func NewWorker(loop *Loop) *Worker {
	return &Worker{q: newQueue[command](), loop: loop}
}

// Enqueue adds a command. It never blocks.
func (w *Worker) Enqueue(name string, run func(ctx context.Context) error) {
	w.q.push(command{name: name, run: run})
}

// Pending returns the number of commands not yet started.
func (w *Worker) Pending() int {
	return w.q.len()
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		cmd, ok := w.q.pop(ctx)
		if !ok {
			return nil
		}
		done := make(chan struct{})
		w.loop.Post(func(ctx context.Context) error {
			defer close(done)
			appLog.Debug("Running command", "command", cmd.name)
			return cmd.run(ctx)
		})
		select {
		case <-ctx.Done():
			return nil
		case <-done:
		}
	}
}
