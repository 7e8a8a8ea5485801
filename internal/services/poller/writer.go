package poller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// SampleWriter appends applied samples to the history off the fetch path.
type SampleWriter struct {
	repo    ports.SampleRepo
	log     *zap.Logger
	jobs    chan domain.Sample
	workers int
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	stopped bool
}

// NewSampleWriter returns a writer with the given number of workers.
func NewSampleWriter(repo ports.SampleRepo, workers int, log *zap.Logger) *SampleWriter {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SampleWriter{
		repo:    repo,
		log:     log,
		workers: workers,
		jobs:    make(chan domain.Sample, workers*16),
		quit:    make(chan struct{}),
	}
}

// Start launches the workers. They drain the queue until Stop.
func (w *SampleWriter) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			for s := range w.jobs {
				if err := w.repo.Append(context.WithoutCancel(ctx), s); err != nil {
					w.log.Warn("sample append failed",
						zap.Int("worker", id),
						zap.Uint64("sequence", s.Sequence),
						zap.Error(err))
				}
			}
		}(i + 1)
	}
}

// Submit queues s, giving up when ctx ends first. After Stop it drops s.
func (w *SampleWriter) Submit(ctx context.Context, s domain.Sample) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.log.Debug("sample dropped after stop", zap.Uint64("sequence", s.Sequence))
		return
	}
	select {
	case w.jobs <- s:
	case <-ctx.Done():
	case <-w.quit:
	}
}

// Stop closes the queue and waits for pending appends. It is safe to call
// more than once and concurrently with Submit.
func (w *SampleWriter) Stop() {
	w.once.Do(func() {
		close(w.quit)
		w.mu.Lock()
		w.stopped = true
		close(w.jobs)
		w.mu.Unlock()
	})
	w.wg.Wait()
}
