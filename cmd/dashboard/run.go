package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vshulcz/Migrascope/internal/adapters/hoststats"
	"github.com/vshulcz/Migrascope/internal/adapters/http/ginserver"
	"github.com/vshulcz/Migrascope/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/Migrascope/internal/adapters/remote/httpjson"
	"github.com/vshulcz/Migrascope/internal/adapters/telemetry"
	"github.com/vshulcz/Migrascope/internal/config"
	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/misc"
	"github.com/vshulcz/Migrascope/internal/services/audit"
	"github.com/vshulcz/Migrascope/internal/services/command"
	"github.com/vshulcz/Migrascope/internal/services/metricsync"
	"github.com/vshulcz/Migrascope/internal/services/passthrough"
	"github.com/vshulcz/Migrascope/internal/services/poller"
)

const (
	auditLogSize      = 200
	breakerFailures   = 5
	breakerOpenFor    = 30 * time.Second
	hostStatsInterval = 10 * time.Second
	sampleWorkers     = 1
	shutdownTimeout   = 10 * time.Second
)

var dotEnvPaths = []string{".env", "../.env"}

func run(ctx context.Context, args []string) error {
	if _, err := config.LoadDotEnv(dotEnvPaths...); err != nil {
		return err
	}
	cfg, err := config.LoadDashboardConfig(args, nil)
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	logger, syncLog, err := newLogger(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer syncLog()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("dashboard started",
		zap.String("addr", cfg.Address),
		zap.String("service", cfg.ServiceURL),
		zap.Duration("poll", cfg.PollInterval),
		zap.Bool("postgres", cfg.DSN != ""),
		zap.Bool("retry", cfg.Retry),
		zap.Bool("breaker", cfg.Breaker),
		zap.Bool("last_write_wins", cfg.LastWriteWins))
	return a.Run(ctx)
}

type app struct {
	cfg        config.DashboardConfig
	log        *zap.Logger
	handler    http.Handler
	poller     *poller.Service
	writer     *poller.SampleWriter
	host       *hoststats.Collector
	closeStore func()
	closeAudit func(context.Context)
}

func newApp(ctx context.Context, cfg config.DashboardConfig, logger *zap.Logger) (*app, error) {
	opts := []httpjson.Option{httpjson.WithLogger(logger), httpjson.WithKey(cfg.Key)}
	if cfg.Retry {
		opts = append(opts, httpjson.WithRetry(misc.DefaultBackoff))
	}
	if cfg.Breaker {
		opts = append(opts, httpjson.WithBreaker(breakerFailures, breakerOpenFor))
	}
	client, err := httpjson.New(cfg.ServiceURL, &http.Client{Timeout: cfg.RequestTimeout}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init transport: %w", err)
	}

	auditLog := audit.NewLog(auditLogSize)
	subject, closeAudit, err := buildAudit(cfg, logger, auditLog)
	if err != nil {
		return nil, fmt.Errorf("failed to init audit: %w", err)
	}

	rec := telemetry.New()
	repo, persister, closeStore := buildSampleStore(ctx, cfg, logger)
	writer := poller.NewSampleWriter(repo, sampleWorkers, logger)

	syncOpts := []metricsync.Option{
		metricsync.WithLogger(logger),
		metricsync.WithRecorder(rec),
		metricsync.OnApplied(writer.Submit),
	}
	if cfg.LastWriteWins {
		syncOpts = append(syncOpts, metricsync.WithLastWriteWins())
	}
	ctrl := metricsync.New(client, syncOpts...)
	rec.Watch(func() (domain.MetricsSnapshot, domain.SyncStatus) {
		v := ctrl.View()
		return v.Metrics, v.Status
	})

	host := hoststats.New()
	h := ginserver.NewHandler(ginserver.Deps{
		Sync:     ctrl,
		Commands: command.New(client, ctrl,
			command.WithAudit(subject),
			command.WithRecorder(rec),
			command.WithLogger(logger)),
		Gateway:  passthrough.New(client, logger),
		Samples:  repo,
		Host:     host.Snapshot,
		AuditLog: auditLog,
	})
	r := ginserver.NewRouter(h, rec.Handler(),
		middlewares.ZapLogger(logger),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
		middlewares.HashSHA256(cfg.Key),
	)

	return &app{
		cfg:        cfg,
		log:        logger,
		handler:    r,
		poller:     poller.New(poller.Config{Interval: cfg.PollInterval, SaveInterval: cfg.SaveInterval}, ctrl, repo, persister, logger),
		writer:     writer,
		host:       host,
		closeStore: closeStore,
		closeAudit: closeAudit,
	}, nil
}

// Run serves the API and polls until ctx is done, then shuts everything down.
func (a *app) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Address,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.writer.Start(ctx)
	a.host.Start(ctx, hostStatsInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", a.cfg.Address, err)
		}
		return nil
	})
	g.Go(func() error {
		return a.poller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err := g.Wait()
	a.close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("dashboard stopped")
	return nil
}

func (a *app) close() {
	a.host.Stop()
	a.writer.Stop()
	actx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.closeAudit(actx)
	a.closeStore()
}
