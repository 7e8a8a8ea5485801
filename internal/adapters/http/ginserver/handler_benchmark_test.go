package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	memrepo "github.com/vshulcz/Migrascope/internal/adapters/repository/memory"
	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
	"github.com/vshulcz/Migrascope/internal/services/command"
	"github.com/vshulcz/Migrascope/internal/services/metricsync"
)

// benchTransport answers in-process so the benchmark measures the handler path only.
type benchTransport struct{}

var (
	benchMetrics = json.RawMessage(`{"total_requests":4000,"legacy_requests":2000,"cloud_requests":2000,"error_count":3,` +
		`"legacy_avg_time":2750.5,"cloud_avg_time":85.25,"cost_saved":250000,"performance_improvement":32.3,"migration_percentage":50}`)
	benchAck = json.RawMessage(`{"success":true,"migration_percentage":50,"timestamp":"2024-03-01T12:00:00Z"}`)
)

func (benchTransport) Do(_ context.Context, req ports.Request) (json.RawMessage, error) {
	if req.Path == command.PathSetMigration {
		return benchAck, nil
	}
	return benchMetrics, nil
}

func newBenchEngine(b *testing.B) (*gin.Engine, *memrepo.Repo) {
	b.Helper()
	gin.SetMode(gin.ReleaseMode)

	repo := memrepo.New(memrepo.DefaultCapacity)
	ctrl := metricsync.New(benchTransport{}, metricsync.OnApplied(func(ctx context.Context, s domain.Sample) {
		_ = repo.Append(ctx, s)
	}))
	handler := NewHandler(Deps{
		Sync:     ctrl,
		Commands: command.New(benchTransport{}, ctrl),
		Samples:  repo,
	})

	engine := gin.New()
	engine.POST("/api/metrics/refresh", handler.Refresh)
	engine.POST("/api/migration", handler.SetMigration)
	engine.GET("/api/samples", handler.Samples)
	return engine, repo
}

func BenchmarkHandlerRefresh(b *testing.B) {
	engine, _ := newBenchEngine(b)
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/metrics/refresh", nil))
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status: %d", w.Code)
		}
	}
}

func BenchmarkHandlerSetMigration(b *testing.B) {
	engine, _ := newBenchEngine(b)
	payload := []byte(`{"percentage":49.5}`)
	b.ReportAllocs()

	for b.Loop() {
		req := httptest.NewRequest(http.MethodPost, "/api/migration", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status: %d", w.Code)
		}
	}
}

func BenchmarkHandlerSamples(b *testing.B) {
	engine, repo := newBenchEngine(b)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range memrepo.DefaultCapacity {
		_ = repo.Append(context.Background(), domain.Sample{
			Sequence: uint64(i + 1),
			TakenAt:  base.Add(time.Duration(i) * time.Second),
			Snapshot: domain.DefaultSnapshot(),
		})
	}
	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/samples?limit=100", nil))
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status: %d", w.Code)
		}
	}
}
