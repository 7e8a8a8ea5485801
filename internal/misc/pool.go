package misc

import "sync"

// Resetter is implemented by values that can be cleared for reuse.
type Resetter interface {
	Reset()
}

// Pool is a typed sync.Pool that resets values on Put.
type Pool[T Resetter] struct {
	keep func(T) bool
	p    sync.Pool
}

// PoolOption customizes a Pool.
type PoolOption[T Resetter] func(*Pool[T])

// WithKeep makes Put drop values for which keep returns false, so a single
// oversized value does not stay pinned in the pool.
func WithKeep[T Resetter](keep func(T) bool) PoolOption[T] {
	return func(pl *Pool[T]) { pl.keep = keep }
}

// NewPool returns a Pool that creates values with newFn.
func NewPool[T Resetter](newFn func() T, opts ...PoolOption[T]) *Pool[T] {
	pl := &Pool[T]{}
	for _, o := range opts {
		o(pl)
	}
	pl.p.New = func() any {
		if newFn != nil {
			return newFn()
		}
		var zero T
		return zero
	}
	return pl
}

// Get returns a pooled or freshly created value.
func (pl *Pool[T]) Get() T {
	if v, ok := pl.p.Get().(T); ok {
		return v
	}
	var zero T
	return zero
}

// Put resets v and returns it to the pool unless the keep predicate rejects it.
func (pl *Pool[T]) Put(v T) {
	if pl.keep != nil && !pl.keep(v) {
		return
	}
	v.Reset()
	pl.p.Put(v)
}
