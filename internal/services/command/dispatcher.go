// Package command issues mutating operator commands to the migration service.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
	"github.com/vshulcz/Migrascope/internal/services/audit"
)

// Remote paths used by the dispatcher.
const (
	PathSetMigration = "/proxy/set_migration"
	PathRequest      = "/proxy/request"
	PathRollback     = "/proxy/rollback"
)

// MigrationState is the part of the sync controller the dispatcher reconciles into.
type MigrationState interface {
	ApplyMigrationAck(percentage int)
	Reset(ctx context.Context) (bool, error)
}

// Dispatcher sends commands and reconciles acknowledgments into the snapshot.
type Dispatcher struct {
	remote ports.Transport
	state  MigrationState
	audit  audit.Publisher
	rec    ports.SyncRecorder
	log    *zap.Logger
	now    func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithAudit publishes an Event for every command.
func WithAudit(p audit.Publisher) Option {
	return func(d *Dispatcher) { d.audit = p }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r ports.SyncRecorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.rec = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New returns a Dispatcher.
func New(remote ports.Transport, state MigrationState, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		remote: remote,
		state:  state,
		rec:    ports.NopRecorder{},
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetMigrationPercentage sends round(p) to the service. The 0..100 range is
// not checked locally, but p must round to an int64. On failure the result
// is {false, 0, now} and the error is non-nil, so callers can tell
// "set to 0" from "command failed".
func (d *Dispatcher) SetMigrationPercentage(ctx context.Context, p float64) (domain.MigrationCommandResult, error) {
	if !domain.FitsInt64(p) {
		err := fmt.Errorf("percentage %v: %w", p, domain.ErrInvalidArgument)
		d.finish(ctx, audit.CommandSetMigration, nil, err)
		return domain.FailedMigrationResult(d.now()), err
	}
	pct := domain.RoundHalfUp(p)

	raw, err := d.remote.Do(ctx, ports.Request{
		Op:     "setMigration",
		Method: http.MethodPost,
		Path:   PathSetMigration,
		Body:   domain.MigrationRequest{Percentage: pct},
	})
	if err != nil {
		d.finish(ctx, audit.CommandSetMigration, &pct, err)
		return domain.FailedMigrationResult(d.now()), err
	}

	var res domain.MigrationCommandResult
	if err := json.Unmarshal(raw, &res); err != nil {
		err = &domain.Failure{Kind: domain.DecodeFailure, Message: "malformed migration ack: " + err.Error(), Err: err}
		d.finish(ctx, audit.CommandSetMigration, &pct, err)
		return domain.FailedMigrationResult(d.now()), err
	}
	if !res.Success {
		d.finish(ctx, audit.CommandSetMigration, &pct, domain.ErrCommandRejected)
		return res, domain.ErrCommandRejected
	}

	d.state.ApplyMigrationAck(res.MigrationPercentage)
	d.finish(ctx, audit.CommandSetMigration, &pct, nil)
	return res, nil
}

// Reset asks the service to zero its metrics via the sync controller.
func (d *Dispatcher) Reset(ctx context.Context) (bool, error) {
	ok, err := d.state.Reset(ctx)
	if err == nil && !ok {
		d.finish(ctx, audit.CommandReset, nil, domain.ErrCommandRejected)
		return false, nil
	}
	d.finish(ctx, audit.CommandReset, nil, err)
	return ok, err
}

// Rollback sets the service back to 0% from the given point and reconciles the new percentage.
func (d *Dispatcher) Rollback(ctx context.Context, req domain.RollbackRequest) (domain.RollbackResult, error) {
	raw, err := d.remote.Do(ctx, ports.Request{
		Op:     "rollback",
		Method: http.MethodPost,
		Path:   PathRollback,
		Body:   req,
	})
	if err != nil {
		d.finish(ctx, audit.CommandRollback, nil, err)
		return domain.RollbackResult{}, err
	}
	var res domain.RollbackResult
	if err := json.Unmarshal(raw, &res); err != nil {
		err = &domain.Failure{Kind: domain.DecodeFailure, Message: "malformed rollback ack: " + err.Error(), Err: err}
		d.finish(ctx, audit.CommandRollback, nil, err)
		return domain.RollbackResult{}, err
	}
	if !res.Success {
		d.finish(ctx, audit.CommandRollback, nil, domain.ErrCommandRejected)
		return res, domain.ErrCommandRejected
	}
	d.state.ApplyMigrationAck(res.NewMigrationPercentage)
	pct := int64(res.NewMigrationPercentage)
	d.finish(ctx, audit.CommandRollback, &pct, nil)
	return res, nil
}

// RequestTestTraffic sends the canned inventory request through the routing proxy.
// No local state changes.
func (d *Dispatcher) RequestTestTraffic(ctx context.Context) (json.RawMessage, error) {
	raw, err := d.remote.Do(ctx, ports.Request{
		Op:     "generateTestRequest",
		Method: http.MethodPost,
		Path:   PathRequest,
		Body:   domain.TestTrafficRequest(),
	})
	d.finish(ctx, audit.CommandTestTraffic, nil, err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (d *Dispatcher) finish(ctx context.Context, cmd string, pct *int64, err error) {
	d.rec.CommandCompleted(cmd, err == nil)
	if err != nil {
		d.log.Warn("command failed",
			zap.String("component", "command"),
			zap.String("operation", cmd),
			zap.Error(err))
	} else {
		d.log.Info("command acknowledged", zap.String("operation", cmd))
	}
	if d.audit == nil {
		return
	}
	origin := audit.OriginFromContext(ctx)
	d.audit.Publish(ctx, audit.Event{
		Timestamp:  d.now().Unix(),
		Command:    cmd,
		Percentage: pct,
		Success:    err == nil,
		Error:      domain.FailureMessage(err),
		IPAddress:  origin.ClientIP,
		RequestID:  origin.RequestID,
	})
}
