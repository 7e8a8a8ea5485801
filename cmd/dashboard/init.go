package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	auditfile "github.com/vshulcz/Migrascope/internal/adapters/audit/file"
	remoteaudit "github.com/vshulcz/Migrascope/internal/adapters/audit/remote"
	"github.com/vshulcz/Migrascope/internal/adapters/persistence/file"
	memrepo "github.com/vshulcz/Migrascope/internal/adapters/repository/memory"
	pgrepo "github.com/vshulcz/Migrascope/internal/adapters/repository/postgres"
	"github.com/vshulcz/Migrascope/internal/config"
	"github.com/vshulcz/Migrascope/internal/misc"
	"github.com/vshulcz/Migrascope/internal/ports"
	"github.com/vshulcz/Migrascope/internal/services/audit"
	"github.com/vshulcz/Migrascope/pkg/observer"
)

const auditQueueDepth = 256

// buildSampleStore prefers Postgres and falls back to the in-memory ring,
// which is restored from and saved to the samples file.
func buildSampleStore(ctx context.Context, cfg config.DashboardConfig, logger *zap.Logger) (ports.SampleRepo, ports.Persister, func()) {
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err == nil {
			op := func() error {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
				return pgrepo.Migrate(db)
			}
			notify := func(n misc.RetryNotice) {
				logger.Info("db not ready, retrying",
					zap.Int("attempt", n.Attempt), zap.Duration("delay", n.Delay), zap.Error(n.Err))
			}
			if err = misc.RetryNotify(ctx, misc.DefaultBackoff, pgrepo.IsRetryable, op, notify); err == nil {
				logger.Info("db connected & migrated")
				return pgrepo.New(db), nil, func() { _ = db.Close() }
			}
			_ = db.Close()
		}
		logger.Warn("postgres init failed, falling back to memory", zap.Error(err))
	}

	repo := memrepo.New(cfg.SamplesLimit)
	fp := file.New(cfg.SamplesFile)
	if fp == nil {
		return repo, nil, func() {}
	}
	if err := fp.Restore(ctx, repo); err != nil {
		logger.Warn("restore failed", zap.Error(err))
	} else {
		logger.Info("restore ok", zap.String("file", cfg.SamplesFile), zap.Int("samples", repo.Len()))
	}
	return repo, fp, func() {}
}

// buildAudit attaches the configured audit sinks. The remote sink is moved off
// the command path behind a bounded queue.
func buildAudit(cfg config.DashboardConfig, logger *zap.Logger, sinks ...audit.Observer) (*audit.Subject, func(context.Context), error) {
	onError := func(err error) {
		logger.Warn("audit delivery failed", zap.Error(err))
	}
	subject := audit.NewSubject(onError, sinks...)

	var closers []func(context.Context)
	if w := auditfile.New(cfg.AuditFile); w != nil {
		subject.Attach(w)
		closers = append(closers, func(context.Context) { _ = w.Close() })
	}
	if cfg.AuditURL != "" {
		rc, err := remoteaudit.New(cfg.AuditURL, &http.Client{Timeout: remoteaudit.DefaultTimeout}, misc.DefaultBackoff...)
		if err != nil {
			return nil, nil, err
		}
		async := observer.NewAsync[audit.Event](rc, auditQueueDepth, onError)
		subject.Attach(async)
		closers = append(closers, func(ctx context.Context) {
			if err := async.Close(ctx); err != nil {
				logger.Warn("audit queue not drained", zap.Error(err))
			}
		})
	}

	closeAll := func(ctx context.Context) {
		for _, c := range closers {
			c(ctx)
		}
	}
	return subject, closeAll, nil
}
