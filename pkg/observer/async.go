package observer

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is reported when an Async observer drops an event.
var ErrQueueFull = errors.New("observer queue full")

// Async moves a slow observer off the publishing goroutine. Events are queued
// up to a fixed depth and delivered in order by one worker; when the queue is
// full Notify returns ErrQueueFull and the event is dropped.
type Async[T any] struct {
	next    Observer[T]
	queue   chan T
	done    chan struct{}
	onError func(error)
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewAsync starts the worker. Errors from next are passed to onError, which may be nil.
func NewAsync[T any](next Observer[T], depth int, onError func(error)) *Async[T] {
	if depth <= 0 {
		depth = 64
	}
	a := &Async[T]{
		next:    next,
		queue:   make(chan T, depth),
		done:    make(chan struct{}),
		onError: onError,
	}
	go a.run()
	return a
}

func (a *Async[T]) run() {
	defer close(a.done)
	for evt := range a.queue {
		if err := a.next.Notify(context.Background(), evt); err != nil && a.onError != nil {
			a.onError(err)
		}
	}
}

// Notify enqueues evt without blocking.
func (a *Async[T]) Notify(_ context.Context, evt T) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrQueueFull
	}
	select {
	case a.queue <- evt:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (a *Async[T]) Close(ctx context.Context) error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
