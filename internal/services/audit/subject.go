package audit

import (
	"context"
	"sync"

	"github.com/vshulcz/Migrascope/pkg/observer"
)

// Observer receives audit events.
type Observer = observer.Observer[Event]

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc = observer.ObserverFunc[Event]

// Publisher broadcasts audit events.
type Publisher = observer.Publisher[Event]

// Subject fans out events to registered observers.
type Subject = observer.Subject[Event]

// NewSubject returns a subject that reports sink failures to onError.
func NewSubject(onError func(error), observers ...Observer) *Subject {
	s := observer.NewSubject[Event](observers...)
	s.SetErrorHandler(onError)
	return s
}

// DefaultLogSize is the number of events kept by a Log created with a non-positive size.
const DefaultLogSize = 100

// Log keeps the most recent events in memory for the dashboard.
type Log struct {
	events []Event
	next   int
	full   bool
	mu     sync.RWMutex
}

// NewLog returns a Log holding up to size events.
func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{events: make([]Event, size)}
}

// Notify stores evt, evicting the oldest entry when full.
func (l *Log) Notify(_ context.Context, evt Event) error {
	l.mu.Lock()
	l.events[l.next] = evt
	l.next++
	if l.next == len(l.events) {
		l.next = 0
		l.full = true
	}
	l.mu.Unlock()
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all of them.
func (l *Log) Recent(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.events)) % len(l.events)
		out = append(out, l.events[idx])
	}
	return out
}
