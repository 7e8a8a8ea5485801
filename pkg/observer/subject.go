// Package observer provides a small typed fan-out used for the command audit trail.
package observer

import (
	"context"
	"sync"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify calls f.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Publisher is the producer side of a Subject.
type Publisher[T any] interface {
	Publish(context.Context, T)
}

// Subject delivers every published event to all attached observers in attach order.
// Observer errors never reach the publisher; they go to the error handler.
type Subject[T any] struct {
	onError   func(error)
	observers []Observer[T]
	mu        sync.RWMutex
}

// NewSubject returns a Subject with the given observers attached. Nil observers are skipped.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Publish notifies observers synchronously. Safe on a nil Subject.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}

	s.mu.RLock()
	observers := s.observers
	onError := s.onError
	s.mu.RUnlock()

	for _, obs := range observers {
		if err := obs.Notify(ctx, evt); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Attach registers observers.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Observer[T], 0, len(s.observers)+len(observers))
	next = append(next, s.observers...)
	for _, o := range observers {
		if o != nil {
			next = append(next, o)
		}
	}
	s.observers = next
}

// Len reports how many observers are attached.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// SetErrorHandler sets the callback for observer failures.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}
