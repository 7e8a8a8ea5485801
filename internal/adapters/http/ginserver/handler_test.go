package ginserver

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/adapters/hoststats"
	"github.com/vshulcz/Migrascope/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/Migrascope/internal/adapters/remote/httpjson"
	memrepo "github.com/vshulcz/Migrascope/internal/adapters/repository/memory"
	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/services/audit"
	"github.com/vshulcz/Migrascope/internal/services/command"
	"github.com/vshulcz/Migrascope/internal/services/metricsync"
	"github.com/vshulcz/Migrascope/internal/services/passthrough"
)

// fakeService emulates the remote migration proxy.
type fakeService struct {
	mu        sync.Mutex
	pct       float64
	failing   bool
	lastPath  string
	lastQuery string
	lastBody  string
}

func (f *fakeService) last() (string, string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath, f.lastQuery, f.lastBody
}

func (f *fakeService) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPath, f.lastQuery, f.lastBody = r.URL.Path, r.URL.RawQuery, string(body)

	w.Header().Set("Content-Type", "application/json")
	if f.failing {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"proxy down"}`)
		return
	}

	switch r.URL.Path {
	case metricsync.PathMetrics:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total_requests": 40, "legacy_requests": 20, "cloud_requests": 20, "error_count": 1,
			"legacy_avg_time": 2750, "cloud_avg_time": 85, "cost_saved": 250000,
			"performance_improvement": 32.3, "migration_percentage": f.pct,
		})
	case command.PathSetMigration:
		var req domain.MigrationRequest
		_ = json.Unmarshal(body, &req)
		switch {
		case req.Percentage > 100:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"Invalid percentage"}`)
		case req.Percentage == 99:
			_, _ = io.WriteString(w, `{"success":false,"migration_percentage":0,"timestamp":"t"}`)
		default:
			f.pct = float64(req.Percentage)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true, "migration_percentage": req.Percentage, "timestamp": "2024-03-01T12:00:00Z",
			})
		}
	case metricsync.PathReset:
		_, _ = io.WriteString(w, `{"success":true,"message":"reset"}`)
	case command.PathRollback:
		f.pct = 0
		_, _ = io.WriteString(w, `{"success":true,"new_migration_percentage":0,"message":"rolled back"}`)
	case command.PathRequest:
		_, _ = io.WriteString(w, `{"routed_to":"cloud","status":200}`)
	case "/proxy/config":
		_, _ = io.WriteString(w, `{"config":{"investment_required":1000000}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true}`)
	}
}

type testEnv struct {
	srv    *httptest.Server
	remote *fakeService
	repo   *memrepo.Repo
	log    *audit.Log

	mu     sync.Mutex
	events []audit.Event
}

func (e *testEnv) audited() []audit.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]audit.Event(nil), e.events...)
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{remote: &fakeService{}, repo: memrepo.New(10), log: audit.NewLog(5)}
	upstream := httptest.NewServer(env.remote)
	t.Cleanup(upstream.Close)

	client, err := httpjson.New(upstream.URL, upstream.Client())
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	ctrl := metricsync.New(client, metricsync.OnApplied(func(ctx context.Context, s domain.Sample) {
		_ = env.repo.Append(ctx, s)
	}))
	subject := audit.NewSubject(nil, env.log, audit.ObserverFunc(func(_ context.Context, e audit.Event) error {
		env.mu.Lock()
		env.events = append(env.events, e)
		env.mu.Unlock()
		return nil
	}))
	h := NewHandler(Deps{
		Sync:     ctrl,
		Commands: command.New(client, ctrl, command.WithAudit(subject)),
		Gateway:  passthrough.New(client, nil),
		Samples:  env.repo,
		Host:     func() hoststats.Stats { return hoststats.Stats{Goroutines: 7} },
		AuditLog: env.log,
	})

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "migrascope_up 1\n")
	})
	r := NewRouter(
		h,
		metrics,
		middlewares.ZapLogger(zap.NewNop()),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
	)
	env.srv = httptest.NewServer(r)
	t.Cleanup(env.srv.Close)
	return env
}

func doReq(t *testing.T, method, url string, body []byte, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	data := readMaybeGzip(t, resp)
	return resp, data
}

func readMaybeGzip(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func decodeView(t *testing.T, b []byte) metricsync.View {
	t.Helper()
	var v metricsync.View
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode view %s: %v", b, err)
	}
	return v
}

func TestAPI_MetricsAndRefresh(t *testing.T) {
	env := newEnv(t)

	resp, body := doReq(t, http.MethodGet, env.srv.URL+"/api/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	v := decodeView(t, body)
	if v.Status.Phase != domain.PhaseIdle || v.Metrics.LegacyAvgTime != domain.DefaultLegacyAvgTime {
		t.Fatalf("initial view=%+v", v)
	}
	if v.PerformanceGain != 33 {
		t.Fatalf("default gain=%d want 33", v.PerformanceGain)
	}

	resp, body = doReq(t, http.MethodPost, env.srv.URL+"/api/metrics/refresh", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status=%d", resp.StatusCode)
	}
	v = decodeView(t, body)
	if !v.Status.Available || v.Metrics.TotalRequests != 40 || v.CostSavedLakhs != 3 || v.PerformanceGain != 32 {
		t.Fatalf("refreshed view=%+v", v)
	}

	env.remote.setFailing(true)
	resp, body = doReq(t, http.MethodPost, env.srv.URL+"/api/metrics/refresh", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("failed refresh status=%d", resp.StatusCode)
	}
	v = decodeView(t, body)
	if v.Status.Available || v.Status.Phase != domain.PhaseDefaulted || v.Status.LastError != "proxy down" {
		t.Fatalf("status=%+v", v.Status)
	}
	if v.Metrics != domain.DefaultSnapshot() {
		t.Fatalf("metrics=%+v want defaults", v.Metrics)
	}
}

func TestAPI_RefreshSurvivesDroppedClient(t *testing.T) {
	env := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/metrics/refresh", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.srv.Config.Handler.ServeHTTP(rec, req)

	_, body := doReq(t, http.MethodGet, env.srv.URL+"/api/metrics", nil, nil)
	v := decodeView(t, body)
	if !v.Status.Available || v.Status.Phase != domain.PhaseApplied || v.Metrics.TotalRequests != 40 {
		t.Fatalf("view=%+v", v)
	}
}

func TestAPI_SetMigration(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantSent  string
		wantError string
	}{
		{name: "rounds half up", body: `{"percentage":57.6}`, wantCode: http.StatusOK, wantSent: `{"percentage":58}`},
		{name: "integer", body: `{"percentage":25}`, wantCode: http.StatusOK, wantSent: `{"percentage":25}`},
		{name: "missing", body: `{}`, wantCode: http.StatusBadRequest, wantError: "percentage is required"},
		{name: "not a number", body: `{"percentage":"x"}`, wantCode: http.StatusBadRequest, wantError: "percentage is required"},
		{name: "remote rejection", body: `{"percentage":250}`, wantCode: http.StatusBadGateway, wantSent: `{"percentage":250}`, wantError: "Invalid percentage"},
		{name: "declined ack", body: `{"percentage":99}`, wantCode: http.StatusConflict, wantSent: `{"percentage":99}`, wantError: domain.ErrCommandRejected.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			resp, body := doReq(t, http.MethodPost, env.srv.URL+"/api/migration", []byte(tt.body), nil)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status=%d want %d; body=%s", resp.StatusCode, tt.wantCode, body)
			}
			if tt.wantSent != "" {
				if _, _, sent := env.remote.last(); strings.TrimSpace(sent) != tt.wantSent {
					t.Fatalf("sent=%q want %q", sent, tt.wantSent)
				}
			}
			if tt.wantError != "" {
				var got map[string]any
				_ = json.Unmarshal(body, &got)
				if got["error"] != tt.wantError || got["success"] != false {
					t.Fatalf("body=%s", body)
				}
			}
		})
	}
}

func TestAPI_SetMigration_ReconcilesSnapshot(t *testing.T) {
	env := newEnv(t)
	resp, body := doReq(t, http.MethodPost, env.srv.URL+"/api/migration", []byte(`{"percentage":57.6}`),
		map[string]string{middlewares.HeaderRequestID: "req-58"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var res domain.MigrationCommandResult
	if err := json.Unmarshal(body, &res); err != nil || !res.Success || res.MigrationPercentage != 58 {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	_, body = doReq(t, http.MethodGet, env.srv.URL+"/api/metrics", nil, nil)
	if v := decodeView(t, body); v.Metrics.MigrationPercentage != 58 {
		t.Fatalf("migration=%d want 58", v.Metrics.MigrationPercentage)
	}

	events := env.audited()
	if len(events) != 1 || events[0].Command != audit.CommandSetMigration || !events[0].Success {
		t.Fatalf("events=%+v", events)
	}
	if events[0].IPAddress == "" || events[0].RequestID != "req-58" || events[0].Percentage == nil || *events[0].Percentage != 58 {
		t.Fatalf("event=%+v", events[0])
	}

	resp, body = doReq(t, http.MethodGet, env.srv.URL+"/api/audit?limit=1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit status=%d", resp.StatusCode)
	}
	var recent []audit.Event
	if err := json.Unmarshal(body, &recent); err != nil || len(recent) != 1 || recent[0].RequestID != "req-58" {
		t.Fatalf("recent=%+v err=%v", recent, err)
	}

	resp, _ = doReq(t, http.MethodGet, env.srv.URL+"/api/audit?limit=-1", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", resp.StatusCode)
	}
}

func TestAPI_Commands(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantSub  string
		wantPath string
	}{
		{"reset", "/api/reset", "", http.StatusOK, `"success":true`, metricsync.PathReset},
		{"rollback needs a point", "/api/rollback", `{}`, http.StatusBadRequest, "request_id or timestamp", ""},
		{"rollback bad json", "/api/rollback", `{`, http.StatusBadRequest, "bad request", ""},
		{"rollback by id", "/api/rollback", `{"request_id":12}`, http.StatusOK, `"new_migration_percentage":0`, command.PathRollback},
		{"rollback by time", "/api/rollback", `{"timestamp":"2024-03-01T12:00:00Z"}`, http.StatusOK, `"success":true`, command.PathRollback},
		{"test traffic", "/api/test-traffic", "", http.StatusOK, `"routed_to":"cloud"`, command.PathRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload []byte
			if tt.body != "" {
				payload = []byte(tt.body)
			}
			resp, body := doReq(t, http.MethodPost, env.srv.URL+tt.path, payload, nil)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status=%d want %d; body=%s", resp.StatusCode, tt.wantCode, body)
			}
			if !strings.Contains(string(body), tt.wantSub) {
				t.Fatalf("body %s does not contain %s", body, tt.wantSub)
			}
			if tt.wantPath != "" {
				if p, _, _ := env.remote.last(); p != tt.wantPath {
					t.Fatalf("remote path=%s want %s", p, tt.wantPath)
				}
			}
		})
	}

	_, _, sent := env.remote.last()
	if !strings.Contains(sent, `"part_number":"PART001"`) {
		t.Fatalf("test traffic body=%s", sent)
	}
}

func TestAPI_CommandsUnavailable(t *testing.T) {
	env := newEnv(t)
	env.remote.setFailing(true)

	for _, path := range []string{"/api/reset", "/api/test-traffic"} {
		resp, body := doReq(t, http.MethodPost, env.srv.URL+path, nil, nil)
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("%s status=%d", path, resp.StatusCode)
		}
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("%s body=%s: %v", path, body, err)
		}
		if got["success"] != false || got["error"] != "proxy down" {
			t.Fatalf("%s body=%v", path, got)
		}
	}

	events := env.audited()
	if len(events) != 2 || events[0].Success || events[0].Error != "proxy down" {
		t.Fatalf("events=%+v", events)
	}
}

func TestAPI_Proxy(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		wantCode  int
		wantPath  string
		wantQuery string
		wantBody  string
	}{
		{"history", http.MethodGet, "/api/proxy/history", "", 200, "/proxy/history", "limit=30", ""},
		{"history limit", http.MethodGet, "/api/proxy/history?limit=5", "", 200, "/proxy/history", "limit=5", ""},
		{"history bad limit", http.MethodGet, "/api/proxy/history?limit=x", "", 400, "", "", ""},
		{"request by id", http.MethodGet, "/api/proxy/requests/42", "", 200, "/proxy/request-by-id/42", "", ""},
		{"request bad id", http.MethodGet, "/api/proxy/requests/abc", "", 400, "", "", ""},
		{"rollback states", http.MethodGet, "/api/proxy/rollback-states", "", 200, "/proxy/rollback-states", "", ""},
		{"save plan", http.MethodPost, "/api/proxy/plan", `{"steps":[10,50]}`, 200, "/proxy/plan/save", "", `{"steps":[10,50]}`},
		{"save plan not json", http.MethodPost, "/api/proxy/plan", `steps`, 400, "", "", ""},
		{"analyze code", http.MethodPost, "/api/proxy/analyze-code", `{"file":"legacy.py"}`, 200, "/proxy/analyze-code", "", `{"file":"legacy.py"}`},
		{"analyze code no file", http.MethodPost, "/api/proxy/analyze-code", `{}`, 400, "", "", ""},
		{"validate", http.MethodPost, "/api/proxy/validate-migration", `{"percentage":25,"duration":60,"traffic_volume":1000}`,
			200, "/proxy/validate-migration", "", `{"percentage":25,"duration":60,"traffic_volume":1000}`},
		{"validation history", http.MethodGet, "/api/proxy/validation-history?limit=10", "", 200, "/proxy/validation-history", "limit=10", ""},
		{"next step default", http.MethodGet, "/api/proxy/next-step", "", 200, "/proxy/next-migration-step", "current=0", ""},
		{"next step", http.MethodGet, "/api/proxy/next-step?current=25", "", 200, "/proxy/next-migration-step", "current=25", ""},
		{"scaling metrics", http.MethodGet, "/api/proxy/auto-scaling/metrics", "", 200, "/proxy/auto-scaling/metrics", "", ""},
		{"scaling predict", http.MethodGet, "/api/proxy/auto-scaling/predict", "", 200, "/proxy/auto-scaling/predict", "", ""},
		{"scaling recommendation", http.MethodGet, "/api/proxy/auto-scaling/recommendation?capacity=8", "", 200,
			"/proxy/auto-scaling/recommendation", "capacity=8", ""},
		{"record traffic", http.MethodPost, "/api/proxy/auto-scaling/record-traffic", `{"request_count":120}`, 200,
			"/proxy/auto-scaling/record-traffic", "", `{"request_count":120}`},
		{"record traffic missing", http.MethodPost, "/api/proxy/auto-scaling/record-traffic", `{}`, 400, "", "", ""},
		{"compliance status", http.MethodGet, "/api/proxy/compliance/status", "", 200, "/proxy/compliance/status", "", ""},
		{"compliance check", http.MethodPost, "/api/proxy/compliance/check", `{"request":{"a":1},"response":{"b":2}}`, 200,
			"/proxy/compliance/check", "", `{"request":{"a":1},"response":{"b":2}}`},
		{"compliance violations", http.MethodGet, "/api/proxy/compliance/violations", "", 200, "/proxy/compliance/violations", "", ""},
		{"health", http.MethodGet, "/api/proxy/health", "", 200, "/proxy/health", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload []byte
			if tt.body != "" {
				payload = []byte(tt.body)
			}
			resp, body := doReq(t, tt.method, env.srv.URL+tt.path, payload, nil)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status=%d want %d; body=%s", resp.StatusCode, tt.wantCode, body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if string(body) != `{"ok":true}` {
				t.Fatalf("body=%s", body)
			}
			path, query, sent := env.remote.last()
			if path != tt.wantPath || query != tt.wantQuery {
				t.Fatalf("remote got %s?%s want %s?%s", path, query, tt.wantPath, tt.wantQuery)
			}
			if strings.TrimSpace(sent) != tt.wantBody {
				t.Fatalf("remote body=%q want %q", sent, tt.wantBody)
			}
		})
	}
}

func TestAPI_ProxyFailure(t *testing.T) {
	env := newEnv(t)
	env.remote.setFailing(true)

	resp, body := doReq(t, http.MethodGet, env.srv.URL+"/api/proxy/rollback-states", nil, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if string(body) != `{"error":"proxy down","success":false}` {
		t.Fatalf("body=%s", body)
	}

	resp, body = doReq(t, http.MethodGet, env.srv.URL+"/api/proxy/config", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config status=%d", resp.StatusCode)
	}
	var got struct {
		Config   domain.ServiceConfig `json:"config"`
		Fallback bool                 `json:"fallback"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("config body=%s: %v", body, err)
	}
	if !got.Fallback || got.Config.InvestmentRequired != domain.DefaultInvestmentRequired {
		t.Fatalf("config=%+v", got)
	}

	env.remote.setFailing(false)
	_, body = doReq(t, http.MethodGet, env.srv.URL+"/api/proxy/config", nil, nil)
	got.Fallback = true
	_ = json.Unmarshal(body, &got)
	if got.Fallback || got.Config.InvestmentRequired != 1000000 {
		t.Fatalf("config=%+v", got)
	}
}

func TestAPI_SamplesAndHealth(t *testing.T) {
	env := newEnv(t)
	for range 3 {
		doReq(t, http.MethodPost, env.srv.URL+"/api/metrics/refresh", nil, nil)
	}

	resp, body := doReq(t, http.MethodGet, env.srv.URL+"/api/samples?limit=2", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var samples []domain.Sample
	if err := json.Unmarshal(body, &samples); err != nil {
		t.Fatalf("samples %s: %v", body, err)
	}
	if len(samples) != 2 || samples[0].Sequence != 3 || samples[1].Sequence != 2 {
		t.Fatalf("samples=%+v", samples)
	}

	resp, _ = doReq(t, http.MethodGet, env.srv.URL+"/api/samples?limit=-1", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative limit status=%d", resp.StatusCode)
	}

	resp, body = doReq(t, http.MethodGet, env.srv.URL+"/api/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status=%d", resp.StatusCode)
	}
	var health struct {
		Remote   domain.SyncStatus `json:"remote"`
		Database string            `json:"database"`
		Host     hoststats.Stats   `json:"host"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("health %s: %v", body, err)
	}
	if !health.Remote.Available || health.Remote.Sequence != 3 || health.Host.Goroutines != 7 {
		t.Fatalf("health=%+v", health)
	}
	if health.Database != "db not configured" {
		t.Fatalf("database=%q", health.Database)
	}

	resp, body = doReq(t, http.MethodGet, env.srv.URL+"/ping", nil, nil)
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(string(body), "db ping error") {
		t.Fatalf("ping status=%d body=%s", resp.StatusCode, body)
	}
}

func TestHTTP_IndexAndMisc(t *testing.T) {
	env := newEnv(t)
	doReq(t, http.MethodPost, env.srv.URL+"/api/metrics/refresh", nil, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		hdr        map[string]string
		wantCode   int
		bodySubstr string
		wantGzip   bool
	}{
		{"index gzipped", http.MethodGet, "/", map[string]string{"Accept-Encoding": "gzip"}, http.StatusOK, "<td>Total requests</td><td>40</td>", true},
		{"index plain", http.MethodGet, "/", nil, http.StatusOK, "Performance gain", false},
		{"prometheus", http.MethodGet, "/metrics", nil, http.StatusOK, "migrascope_up 1", false},
		{"wrong method", http.MethodGet, "/api/migration", nil, http.StatusMethodNotAllowed, "method not allowed", false},
		{"unknown", http.MethodGet, "/unknown", map[string]string{"Accept-Encoding": "gzip"}, http.StatusNotFound, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doReq(t, tt.method, env.srv.URL+tt.path, nil, tt.hdr)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status=%d want %d; body=%q", resp.StatusCode, tt.wantCode, body)
			}
			if tt.bodySubstr != "" && !strings.Contains(string(body), tt.bodySubstr) {
				t.Fatalf("body %q does not contain %q", body, tt.bodySubstr)
			}
			gz := strings.Contains(resp.Header.Get("Content-Encoding"), "gzip")
			if gz != tt.wantGzip {
				t.Fatalf("gzip=%v want %v", gz, tt.wantGzip)
			}
		})
	}
}

func TestHTTP_GzipRequestBody(t *testing.T) {
	env := newEnv(t)
	resp, body := doReq(t, http.MethodPost, env.srv.URL+"/api/migration",
		gzipBytes(t, []byte(`{"percentage":40}`)),
		map[string]string{"Content-Encoding": "gzip", "Accept-Encoding": "gzip"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"migration_percentage":40`) {
		t.Fatalf("body=%s", body)
	}
}
