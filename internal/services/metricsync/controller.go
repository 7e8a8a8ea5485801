// Package metricsync owns the canonical migration metrics snapshot and keeps it in sync with the remote service.
package metricsync

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// Remote paths served by the migration proxy.
const (
	PathMetrics = "/proxy/metrics"
	PathReset   = "/proxy/reset"
)

// Fetch outcomes reported to the recorder.
const (
	OutcomeApplied   = "applied"
	OutcomeDefaulted = "defaulted"
	OutcomeDiscarded = "discarded"
	OutcomeCancelled = "cancelled"
)

// Controller is the single owner of the metrics snapshot. All mutation goes through it.
type Controller struct {
	remote    ports.Transport
	rec       ports.SyncRecorder
	log       *zap.Logger
	now       func() time.Time
	onApplied func(context.Context, domain.Sample)

	issued   atomic.Uint64
	inFlight atomic.Int64

	mu      sync.RWMutex
	snap    domain.MetricsSnapshot
	status  domain.SyncStatus
	applied uint64
	lww     bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r ports.SyncRecorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.rec = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLastWriteWins disables the sequence guard: every completed fetch is
// applied in completion order, even if a newer fetch already landed.
func WithLastWriteWins() Option {
	return func(c *Controller) { c.lww = true }
}

// OnApplied registers a hook called after each successful patch, outside the lock.
func OnApplied(fn func(context.Context, domain.Sample)) Option {
	return func(c *Controller) { c.onApplied = fn }
}

// New builds a Controller holding the default snapshot.
func New(remote ports.Transport, opts ...Option) *Controller {
	c := &Controller{
		remote: remote,
		rec:    ports.NopRecorder{},
		log:    zap.NewNop(),
		now:    time.Now,
		snap:   domain.DefaultSnapshot(),
		status: domain.SyncStatus{Phase: domain.PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch pulls the metrics resource and patches it into the snapshot.
// On failure the stored snapshot is left untouched and readers see defaults
// until the next successful fetch. The returned error is the Failure.
// A fetch whose ctx ended before the response arrived changes nothing.
func (c *Controller) Fetch(ctx context.Context) error {
	seq := c.issued.Add(1)
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	patch, err := c.pull(ctx)
	if err != nil && ctx.Err() != nil {
		// An abandoned call says nothing about the service; state stays as it was.
		c.rec.FetchCompleted(OutcomeCancelled)
		c.log.Debug("metrics fetch cancelled by caller",
			zap.Uint64("sequence", seq), zap.Error(ctx.Err()))
		return err
	}

	c.mu.Lock()
	if !c.lww && seq <= c.applied {
		c.status.Discarded++
		c.mu.Unlock()
		c.rec.FetchCompleted(OutcomeDiscarded)
		c.log.Debug("stale metrics response discarded",
			zap.Uint64("sequence", seq), zap.Bool("failed", err != nil))
		return err
	}
	c.applied = seq
	now := c.now()

	if err != nil {
		c.status.Phase = domain.PhaseDefaulted
		c.status.Available = false
		c.status.LastError = domain.FailureMessage(err)
		c.status.UpdatedAt = now
		c.status.Sequence = seq
		c.mu.Unlock()
		c.rec.FetchCompleted(OutcomeDefaulted)
		c.log.Warn("metrics fetch failed, serving defaults",
			zap.String("component", "metricsync"),
			zap.String("operation", "fetchMetrics"),
			zap.Error(err))
		return err
	}

	c.snap = patch.ApplyTo(c.snap)
	c.status.Phase = domain.PhaseApplied
	c.status.Available = true
	c.status.LastError = ""
	c.status.UpdatedAt = now
	c.status.Sequence = seq
	sample := domain.Sample{Sequence: seq, TakenAt: now, Snapshot: c.snap}
	c.mu.Unlock()

	c.rec.FetchCompleted(OutcomeApplied)
	c.log.Debug("metrics updated",
		zap.Uint64("sequence", seq),
		zap.Int("migration_percentage", sample.Snapshot.MigrationPercentage))
	if c.onApplied != nil {
		c.onApplied(ctx, sample)
	}
	return nil
}

func (c *Controller) pull(ctx context.Context) (domain.MetricsPatch, error) {
	raw, err := c.remote.Do(ctx, ports.Request{Op: "getMetrics", Method: http.MethodGet, Path: PathMetrics})
	if err != nil {
		return domain.MetricsPatch{}, err
	}
	var patch domain.MetricsPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return domain.MetricsPatch{}, &domain.Failure{
			Kind:    domain.DecodeFailure,
			Message: "malformed metrics: " + err.Error(),
			Err:     err,
		}
	}
	return patch, nil
}

// Snapshot is the publicly read value: the patched snapshot, or a fresh
// default snapshot while the last completed fetch has failed.
func (c *Controller) Snapshot() domain.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.publicLocked()
}

func (c *Controller) publicLocked() domain.MetricsSnapshot {
	if c.status.Phase == domain.PhaseDefaulted {
		return domain.DefaultSnapshot()
	}
	return c.snap
}

// LastGood returns the stored snapshot regardless of the last fetch outcome.
func (c *Controller) LastGood() domain.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Status reports the availability of the snapshot.
func (c *Controller) Status() domain.SyncStatus {
	c.mu.RLock()
	st := c.status
	c.mu.RUnlock()
	st.InFlight = int(c.inFlight.Load())
	return st
}

// PerformanceGain is recomputed from the public snapshot on every call.
func (c *Controller) PerformanceGain() int64 {
	return c.Snapshot().PerformanceGain()
}

// CostSavedLakhs is recomputed from the public snapshot on every call.
func (c *Controller) CostSavedLakhs() int64 {
	return c.Snapshot().CostSavedLakhs()
}

// View bundles the public snapshot, its derived values and the sync status.
type View struct {
	Metrics         domain.MetricsSnapshot `json:"metrics"`
	Status          domain.SyncStatus      `json:"status"`
	PerformanceGain int64                  `json:"performance_gain"`
	CostSavedLakhs  int64                  `json:"cost_saved_lakhs"`
}

// View returns a consistent read of snapshot, derived values and status.
func (c *Controller) View() View {
	c.mu.RLock()
	snap := c.publicLocked()
	st := c.status
	c.mu.RUnlock()
	st.InFlight = int(c.inFlight.Load())
	return View{
		Metrics:         snap,
		Status:          st,
		PerformanceGain: snap.PerformanceGain(),
		CostSavedLakhs:  snap.CostSavedLakhs(),
	}
}

// ApplyMigrationAck reconciles an acknowledged migration percentage into the snapshot.
func (c *Controller) ApplyMigrationAck(percentage int) {
	c.mu.Lock()
	c.snap.MigrationPercentage = percentage
	c.mu.Unlock()
}

// Reset asks the service to zero its metrics. Local state is not touched;
// the next Fetch pulls the zeroed state. The bool is the remote acknowledgment.
func (c *Controller) Reset(ctx context.Context) (bool, error) {
	raw, err := c.remote.Do(ctx, ports.Request{Op: "resetMetrics", Method: http.MethodPost, Path: PathReset})
	if err != nil {
		return false, err
	}
	var ack domain.ResetResult
	if err := json.Unmarshal(raw, &ack); err != nil {
		return false, &domain.Failure{Kind: domain.DecodeFailure, Message: "malformed reset ack: " + err.Error(), Err: err}
	}
	return ack.Success, nil
}
