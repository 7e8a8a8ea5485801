// Package passthrough forwards the read-mostly migration service resources
// and substitutes documented fallbacks when the service cannot answer.
package passthrough

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// DefaultHistoryLimit is used when History is asked for a non-positive limit.
const DefaultHistoryLimit = 30

// ValidationRequest is the body of POST /proxy/validate-migration.
type ValidationRequest struct {
	Percentage    float64 `json:"percentage"`
	Duration      float64 `json:"duration"`
	TrafficVolume float64 `json:"traffic_volume"`
}

// ComplianceCheck is the request/response pair audited by POST /proxy/compliance/check.
type ComplianceCheck struct {
	Request  json.RawMessage `json:"request"`
	Response json.RawMessage `json:"response"`
}

type failurePayload struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

// FailurePayload renders err as {"success":false,"error":msg}.
func FailurePayload(err error) json.RawMessage {
	b, mErr := json.Marshal(failurePayload{Error: domain.FailureMessage(err)})
	if mErr != nil {
		return json.RawMessage(`{"success":false,"error":"Internal Server Error"}`)
	}
	return b
}

// Gateway exposes the pass-through operations. Every method returns a usable
// payload: on failure it is FailurePayload(err), next to the Failure itself.
type Gateway struct {
	remote ports.Transport
	log    *zap.Logger
}

// New returns a Gateway over remote.
func New(remote ports.Transport, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{remote: remote, log: log}
}

func (g *Gateway) call(ctx context.Context, op, method, path string, q url.Values, body any) (json.RawMessage, error) {
	raw, err := g.remote.Do(ctx, ports.Request{Op: op, Method: method, Path: path, Query: q, Body: body})
	if err != nil {
		g.log.Debug("pass-through substituted", zap.String("operation", op), zap.Error(err))
		return FailurePayload(err), err
	}
	return raw, nil
}

// Config returns the service config, or DefaultServiceConfig when it cannot be read.
func (g *Gateway) Config(ctx context.Context) (domain.ServiceConfig, error) {
	raw, err := g.remote.Do(ctx, ports.Request{Op: "getConfig", Method: http.MethodGet, Path: "/proxy/config"})
	if err != nil {
		return domain.DefaultServiceConfig(), err
	}
	var env struct {
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Config) == 0 || string(env.Config) == "null" {
		return domain.DefaultServiceConfig(), nil
	}
	cfg := domain.DefaultServiceConfig()
	if err := json.Unmarshal(env.Config, &cfg); err != nil {
		return domain.DefaultServiceConfig(), &domain.Failure{Kind: domain.DecodeFailure, Message: "malformed config: " + err.Error(), Err: err}
	}
	cfg.Raw = env.Config
	return cfg, nil
}

// History lists recent routed requests.
func (g *Gateway) History(ctx context.Context, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return g.call(ctx, "fetchRequestHistory", http.MethodGet, "/proxy/history",
		url.Values{"limit": {strconv.Itoa(limit)}}, nil)
}

// RequestByID returns one history entry.
func (g *Gateway) RequestByID(ctx context.Context, id int64) (json.RawMessage, error) {
	return g.call(ctx, "fetchRequestByID", http.MethodGet,
		"/proxy/request-by-id/"+strconv.FormatInt(id, 10), nil, nil)
}

// RollbackStates lists the points a rollback can target.
func (g *Gateway) RollbackStates(ctx context.Context) (json.RawMessage, error) {
	return g.call(ctx, "fetchRollbackStates", http.MethodGet, "/proxy/rollback-states", nil, nil)
}

// SavePlan stores an arbitrary migration plan.
func (g *Gateway) SavePlan(ctx context.Context, plan json.RawMessage) (json.RawMessage, error) {
	return g.call(ctx, "saveMigrationPlan", http.MethodPost, "/proxy/plan/save", nil, plan)
}

// AnalyzeCode asks the service to analyze one source file.
func (g *Gateway) AnalyzeCode(ctx context.Context, file string) (json.RawMessage, error) {
	return g.call(ctx, "analyzeCode", http.MethodPost, "/proxy/analyze-code", nil,
		map[string]string{"file": file})
}

// ValidateMigration runs the digital twin against a proposed split.
func (g *Gateway) ValidateMigration(ctx context.Context, req ValidationRequest) (json.RawMessage, error) {
	return g.call(ctx, "validateMigration", http.MethodPost, "/proxy/validate-migration", nil, req)
}

// ValidationHistory lists past validations.
func (g *Gateway) ValidationHistory(ctx context.Context, limit int) (json.RawMessage, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	return g.call(ctx, "fetchValidationHistory", http.MethodGet, "/proxy/validation-history", q, nil)
}

// NextStep suggests the split to move to from current.
func (g *Gateway) NextStep(ctx context.Context, current int) (json.RawMessage, error) {
	return g.call(ctx, "fetchNextStep", http.MethodGet, "/proxy/next-migration-step",
		url.Values{"current": {strconv.Itoa(current)}}, nil)
}

// AutoScalingMetrics returns the advisor's traffic metrics.
func (g *Gateway) AutoScalingMetrics(ctx context.Context) (json.RawMessage, error) {
	return g.call(ctx, "fetchAutoScalingMetrics", http.MethodGet, "/proxy/auto-scaling/metrics", nil, nil)
}

// AutoScalingPrediction returns the predicted load.
func (g *Gateway) AutoScalingPrediction(ctx context.Context) (json.RawMessage, error) {
	return g.call(ctx, "fetchAutoScalingPrediction", http.MethodGet, "/proxy/auto-scaling/predict", nil, nil)
}

// AutoScalingRecommendation returns a scaling recommendation for the given capacity.
func (g *Gateway) AutoScalingRecommendation(ctx context.Context, capacity int) (json.RawMessage, error) {
	return g.call(ctx, "fetchAutoScalingRecommendation", http.MethodGet, "/proxy/auto-scaling/recommendation",
		url.Values{"capacity": {strconv.Itoa(capacity)}}, nil)
}

// RecordTraffic feeds an observed request count to the advisor.
func (g *Gateway) RecordTraffic(ctx context.Context, requestCount int64) (json.RawMessage, error) {
	return g.call(ctx, "recordTraffic", http.MethodPost, "/proxy/auto-scaling/record-traffic", nil,
		map[string]int64{"request_count": requestCount})
}

// ComplianceStatus returns the current compliance summary.
func (g *Gateway) ComplianceStatus(ctx context.Context) (json.RawMessage, error) {
	return g.call(ctx, "fetchComplianceStatus", http.MethodGet, "/proxy/compliance/status", nil, nil)
}

// ComplianceCheck audits one request/response pair.
func (g *Gateway) ComplianceCheck(ctx context.Context, chk ComplianceCheck) (json.RawMessage, error) {
	return g.call(ctx, "runComplianceCheck", http.MethodPost, "/proxy/compliance/check", nil, chk)
}

// ComplianceViolations lists recent violations.
func (g *Gateway) ComplianceViolations(ctx context.Context, limit int) (json.RawMessage, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	return g.call(ctx, "fetchComplianceViolations", http.MethodGet, "/proxy/compliance/violations", q, nil)
}

// Health reports the service's own health endpoint.
func (g *Gateway) Health(ctx context.Context) (json.RawMessage, error) {
	return g.call(ctx, "fetchHealth", http.MethodGet, "/proxy/health", nil, nil)
}
