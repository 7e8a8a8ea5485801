// Package poller drives the periodic metrics fetch and keeps the sample history saved.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/ports"
)

// Fetcher is satisfied by the metrics sync controller.
type Fetcher interface {
	Fetch(ctx context.Context) error
}

// Config controls the loop.
type Config struct {
	// Interval between fetches. Zero disables polling; the loop then only saves.
	Interval time.Duration
	// SaveInterval between history saves. Zero saves only on shutdown.
	SaveInterval time.Duration
}

// Service runs the fetch loop.
type Service struct {
	fetcher   Fetcher
	repo      ports.SampleRepo
	persister ports.Persister
	log       *zap.Logger
	cfg       Config
}

// New wires the loop. repo and persister may be nil.
func New(cfg Config, f Fetcher, repo ports.SampleRepo, p ports.Persister, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, fetcher: f, repo: repo, persister: p, log: log}
}

// Run fetches once immediately and then on every tick until ctx is done.
// Fetch failures are logged; the loop never stops on them.
func (s *Service) Run(ctx context.Context) error {
	var fetchC, saveC <-chan time.Time
	if s.cfg.Interval > 0 {
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		fetchC = t.C
		s.fetchOnce(ctx)
	}
	if s.cfg.SaveInterval > 0 && s.canSave() {
		t := time.NewTicker(s.cfg.SaveInterval)
		defer t.Stop()
		saveC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.save(context.WithoutCancel(ctx))
			return nil
		case <-fetchC:
			s.fetchOnce(ctx)
		case <-saveC:
			s.save(ctx)
		}
	}
}

func (s *Service) fetchOnce(ctx context.Context) {
	if err := s.fetcher.Fetch(ctx); err != nil && ctx.Err() == nil {
		s.log.Debug("poll fetch failed", zap.Error(err))
	}
}

func (s *Service) canSave() bool {
	return s.repo != nil && s.persister != nil
}

func (s *Service) save(ctx context.Context) {
	if !s.canSave() {
		return
	}
	items, err := s.repo.Recent(ctx, 0)
	if err != nil {
		s.log.Warn("history read failed", zap.Error(err))
		return
	}
	if err := s.persister.Save(ctx, items); err != nil {
		s.log.Warn("history save failed", zap.Error(err))
		return
	}
	s.log.Debug("history saved", zap.Int("samples", len(items)))
}
