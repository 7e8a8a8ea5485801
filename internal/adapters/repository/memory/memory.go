// Package memory implements a bounded in-memory sample history.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 500

// Repo is a ring buffer of samples. Once full, the oldest sample is overwritten.
type Repo struct {
	buf  []domain.Sample
	next int
	size int
	mu   sync.RWMutex
}

var _ ports.SampleRepo = (*Repo)(nil)

// New returns an empty repository holding at most capacity samples.
func New(capacity int) *Repo {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Repo{buf: make([]domain.Sample, capacity)}
}

// Append stores one sample.
func (r *Repo) Append(_ context.Context, s domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.push(s)
	return nil
}

// AppendMany stores samples in order.
func (r *Repo) AppendMany(_ context.Context, items []domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range items {
		r.push(s)
	}
	return nil
}

func (r *Repo) push(s domain.Sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// Recent returns up to limit samples, newest first by TakenAt then
// Sequence, whatever order they were appended in. A non-positive limit
// returns everything.
func (r *Repo) Recent(_ context.Context, limit int) ([]domain.Sample, error) {
	r.mu.RLock()
	out := make([]domain.Sample, 0, r.size)
	for i := 1; i <= r.size; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, newestFirst)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func newestFirst(a, b domain.Sample) int {
	if c := b.TakenAt.Compare(a.TakenAt); c != 0 {
		return c
	}
	switch {
	case a.Sequence > b.Sequence:
		return -1
	case a.Sequence < b.Sequence:
		return 1
	}
	return 0
}

// Len reports how many samples are held.
func (r *Repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Ping reports that the in-memory history is not backed by a real database.
func (*Repo) Ping(context.Context) error {
	return errors.New("db not configured")
}
