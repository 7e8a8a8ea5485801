package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/Migrascope/internal/adapters/hoststats"
	"github.com/vshulcz/Migrascope/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
	"github.com/vshulcz/Migrascope/internal/services/audit"
	"github.com/vshulcz/Migrascope/internal/services/command"
	"github.com/vshulcz/Migrascope/internal/services/metricsync"
	"github.com/vshulcz/Migrascope/internal/services/passthrough"
)

// DefaultSamplesLimit is used by GET /api/samples when no limit is given.
const DefaultSamplesLimit = 50

const contentTypeJSON = "application/json; charset=utf-8"

// Deps are the services behind the dashboard API.
type Deps struct {
	Sync     *metricsync.Controller
	Commands *command.Dispatcher
	Gateway  *passthrough.Gateway
	Samples  ports.SampleRepo
	Host     func() hoststats.Stats
	AuditLog *audit.Log
}

// Handler exposes the dashboard API consumed by the UI.
type Handler struct {
	sync     *metricsync.Controller
	commands *command.Dispatcher
	gateway  *passthrough.Gateway
	samples  ports.SampleRepo
	host     func() hoststats.Stats
	auditLog *audit.Log
}

// NewHandler wires the services into a gin-compatible HTTP handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		sync:     d.Sync,
		commands: d.Commands,
		gateway:  d.Gateway,
		samples:  d.Samples,
		host:     d.Host,
		auditLog: d.AuditLog,
	}
}

type migrationBody struct {
	Percentage *float64 `json:"percentage"`
}

type analyzeBody struct {
	File string `json:"file"`
}

type trafficBody struct {
	RequestCount *int64 `json:"request_count"`
}

// Metrics handles `GET /api/metrics`.
func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.View())
}

// Refresh handles `POST /api/metrics/refresh`. A failed fetch is not an HTTP
// error: the view reports defaults and the status carries the failure.
// The fetch outlives a dropped client connection and is bounded by the transport timeout.
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.sync.Fetch(context.WithoutCancel(c.Request.Context())); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, h.sync.View())
}

// SetMigration handles `POST /api/migration` with `{"percentage": N}`.
func (h *Handler) SetMigration(c *gin.Context) {
	var body migrationBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Percentage == nil {
		badRequest(c, "percentage is required")
		return
	}
	res, err := h.commands.SetMigrationPercentage(commandCtx(c), *body.Percentage)
	if err != nil {
		commandError(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reset handles `POST /api/reset`.
func (h *Handler) Reset(c *gin.Context) {
	ok, err := h.commands.Reset(commandCtx(c))
	if err != nil {
		commandError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// Rollback handles `POST /api/rollback` with a request_id or a timestamp.
func (h *Handler) Rollback(c *gin.Context) {
	var req domain.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	req.Timestamp = strings.TrimSpace(req.Timestamp)
	if req.RequestID == nil && req.Timestamp == "" {
		badRequest(c, "request_id or timestamp is required")
		return
	}
	res, err := h.commands.Rollback(commandCtx(c), req)
	if err != nil {
		commandError(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// TestTraffic handles `POST /api/test-traffic`.
func (h *Handler) TestTraffic(c *gin.Context) {
	raw, err := h.commands.RequestTestTraffic(commandCtx(c))
	if err != nil {
		relay(c, passthrough.FailurePayload(err), err)
		return
	}
	relay(c, raw, nil)
}

// Samples handles `GET /api/samples?limit=N`, newest first.
func (h *Handler) Samples(c *gin.Context) {
	limit, ok := queryInt(c, "limit", DefaultSamplesLimit)
	if !ok || limit < 0 {
		badRequest(c, "bad limit")
		return
	}
	items, err := h.samples.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "history unavailable"})
		return
	}
	if items == nil {
		items = []domain.Sample{}
	}
	c.JSON(http.StatusOK, items)
}

// AuditLog handles `GET /api/audit`: recent operator commands, newest first.
func (h *Handler) AuditLog(c *gin.Context) {
	limit, ok := queryInt(c, "limit", DefaultSamplesLimit)
	if !ok || limit < 0 {
		badRequest(c, "bad limit")
		return
	}
	if h.auditLog == nil {
		c.JSON(http.StatusOK, []audit.Event{})
		return
	}
	c.JSON(http.StatusOK, h.auditLog.Recent(limit))
}

// Health handles `GET /api/health`. It always answers 200; each part reports its own state.
func (h *Handler) Health(c *gin.Context) {
	database := "ok"
	if err := h.samples.Ping(c.Request.Context()); err != nil {
		database = err.Error()
	}
	out := gin.H{
		"remote":   h.sync.Status(),
		"database": database,
	}
	if h.host != nil {
		out["host"] = h.host()
	}
	c.JSON(http.StatusOK, out)
}

// Ping proxies `GET /ping` to the history storage health check.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.samples.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "db ping error: %v", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

// Index renders a basic HTML page with the current migration metrics.
func (h *Handler) Index(c *gin.Context) {
	v := h.sync.View()
	m := v.Metrics

	var sb strings.Builder
	sb.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>migration</title>")
	sb.WriteString("<style>body{font-family:system-ui,Arial,sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:6px 10px}</style>")
	sb.WriteString("</head><body>")
	sb.WriteString("<h1>Migration</h1>")
	if !v.Status.Available && v.Status.Phase == domain.PhaseDefaulted {
		sb.WriteString("<p>Service unavailable: ")
		sb.WriteString(html.EscapeString(v.Status.LastError))
		sb.WriteString("</p>")
	}

	sb.WriteString("<table><tr><th>Metric</th><th>Value</th></tr>")
	row := func(name, value string) {
		sb.WriteString("<tr><td>")
		sb.WriteString(name)
		sb.WriteString("</td><td>")
		sb.WriteString(value)
		sb.WriteString("</td></tr>")
	}
	row("Migration", strconv.Itoa(m.MigrationPercentage)+"%")
	row("Total requests", strconv.FormatInt(m.TotalRequests, 10))
	row("Legacy requests", strconv.FormatInt(m.LegacyRequests, 10))
	row("Cloud requests", strconv.FormatInt(m.CloudRequests, 10))
	row("Errors", strconv.FormatInt(m.ErrorCount, 10))
	row("Legacy avg (ms)", strconv.FormatFloat(m.LegacyAvgTime, 'f', -1, 64))
	row("Cloud avg (ms)", strconv.FormatFloat(m.CloudAvgTime, 'f', -1, 64))
	row("Performance gain", strconv.FormatInt(v.PerformanceGain, 10)+"x")
	row("Cost saved (lakhs)", strconv.FormatInt(v.CostSavedLakhs, 10))
	sb.WriteString("</table>")

	sb.WriteString("</body></html>")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sb.String()))
}

// ProxyConfig handles `GET /api/proxy/config`. The fallback config is served with 200.
func (h *Handler) ProxyConfig(c *gin.Context) {
	cfg, err := h.gateway.Config(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg, "fallback": err != nil})
}

// ProxyHistory handles `GET /api/proxy/history?limit=N`.
func (h *Handler) ProxyHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit", passthrough.DefaultHistoryLimit)
	if !ok {
		badRequest(c, "bad limit")
		return
	}
	raw, err := h.gateway.History(c.Request.Context(), limit)
	relay(c, raw, err)
}

// ProxyRequestByID handles `GET /api/proxy/requests/:id`.
func (h *Handler) ProxyRequestByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "bad id")
		return
	}
	raw, err := h.gateway.RequestByID(c.Request.Context(), id)
	relay(c, raw, err)
}

// ProxyRollbackStates handles `GET /api/proxy/rollback-states`.
func (h *Handler) ProxyRollbackStates(c *gin.Context) {
	raw, err := h.gateway.RollbackStates(c.Request.Context())
	relay(c, raw, err)
}

// ProxySavePlan handles `POST /api/proxy/plan` with an arbitrary JSON plan.
func (h *Handler) ProxySavePlan(c *gin.Context) {
	plan, err := c.GetRawData()
	if err != nil || !json.Valid(plan) {
		badRequest(c, "plan must be JSON")
		return
	}
	raw, err := h.gateway.SavePlan(c.Request.Context(), plan)
	relay(c, raw, err)
}

// ProxyAnalyzeCode handles `POST /api/proxy/analyze-code` with `{"file": name}`.
func (h *Handler) ProxyAnalyzeCode(c *gin.Context) {
	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.File) == "" {
		badRequest(c, "file is required")
		return
	}
	raw, err := h.gateway.AnalyzeCode(c.Request.Context(), body.File)
	relay(c, raw, err)
}

// ProxyValidate handles `POST /api/proxy/validate-migration`.
func (h *Handler) ProxyValidate(c *gin.Context) {
	var req passthrough.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	raw, err := h.gateway.ValidateMigration(c.Request.Context(), req)
	relay(c, raw, err)
}

// ProxyValidationHistory handles `GET /api/proxy/validation-history?limit=N`.
func (h *Handler) ProxyValidationHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		badRequest(c, "bad limit")
		return
	}
	raw, err := h.gateway.ValidationHistory(c.Request.Context(), limit)
	relay(c, raw, err)
}

// ProxyNextStep handles `GET /api/proxy/next-step?current=N`. Without current
// the public migration percentage is used.
func (h *Handler) ProxyNextStep(c *gin.Context) {
	current, ok := queryInt(c, "current", h.sync.Snapshot().MigrationPercentage)
	if !ok {
		badRequest(c, "bad current")
		return
	}
	raw, err := h.gateway.NextStep(c.Request.Context(), current)
	relay(c, raw, err)
}

// ProxyScalingMetrics handles `GET /api/proxy/auto-scaling/metrics`.
func (h *Handler) ProxyScalingMetrics(c *gin.Context) {
	raw, err := h.gateway.AutoScalingMetrics(c.Request.Context())
	relay(c, raw, err)
}

// ProxyScalingPredict handles `GET /api/proxy/auto-scaling/predict`.
func (h *Handler) ProxyScalingPredict(c *gin.Context) {
	raw, err := h.gateway.AutoScalingPrediction(c.Request.Context())
	relay(c, raw, err)
}

// ProxyScalingRecommendation handles `GET /api/proxy/auto-scaling/recommendation?capacity=N`.
func (h *Handler) ProxyScalingRecommendation(c *gin.Context) {
	capacity, ok := queryInt(c, "capacity", 0)
	if !ok || capacity < 0 {
		badRequest(c, "bad capacity")
		return
	}
	raw, err := h.gateway.AutoScalingRecommendation(c.Request.Context(), capacity)
	relay(c, raw, err)
}

// ProxyRecordTraffic handles `POST /api/proxy/auto-scaling/record-traffic`.
func (h *Handler) ProxyRecordTraffic(c *gin.Context) {
	var body trafficBody
	if err := c.ShouldBindJSON(&body); err != nil || body.RequestCount == nil || *body.RequestCount < 0 {
		badRequest(c, "request_count is required")
		return
	}
	raw, err := h.gateway.RecordTraffic(c.Request.Context(), *body.RequestCount)
	relay(c, raw, err)
}

// ProxyComplianceStatus handles `GET /api/proxy/compliance/status`.
func (h *Handler) ProxyComplianceStatus(c *gin.Context) {
	raw, err := h.gateway.ComplianceStatus(c.Request.Context())
	relay(c, raw, err)
}

// ProxyComplianceCheck handles `POST /api/proxy/compliance/check`.
func (h *Handler) ProxyComplianceCheck(c *gin.Context) {
	var chk passthrough.ComplianceCheck
	if err := c.ShouldBindJSON(&chk); err != nil {
		badRequest(c, "bad request")
		return
	}
	raw, err := h.gateway.ComplianceCheck(c.Request.Context(), chk)
	relay(c, raw, err)
}

// ProxyComplianceViolations handles `GET /api/proxy/compliance/violations?limit=N`.
func (h *Handler) ProxyComplianceViolations(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		badRequest(c, "bad limit")
		return
	}
	raw, err := h.gateway.ComplianceViolations(c.Request.Context(), limit)
	relay(c, raw, err)
}

// ProxyHealth handles `GET /api/proxy/health`.
func (h *Handler) ProxyHealth(c *gin.Context) {
	raw, err := h.gateway.Health(c.Request.Context())
	relay(c, raw, err)
}

func commandCtx(c *gin.Context) context.Context {
	return audit.WithOrigin(context.WithoutCancel(c.Request.Context()), audit.Origin{
		ClientIP:  c.ClientIP(),
		RequestID: c.Writer.Header().Get(middlewares.HeaderRequestID),
	})
}

// relay writes a raw service body. On failure raw is already the failure payload.
func relay(c *gin.Context, raw json.RawMessage, err error) {
	if err != nil {
		_ = c.Error(err)
		c.Data(http.StatusBadGateway, contentTypeJSON, raw)
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, raw)
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	s := strings.TrimSpace(c.Query(name))
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func commandError(c *gin.Context, err error, result any) {
	_ = c.Error(err)
	body := gin.H{"success": false, "error": domain.FailureMessage(err)}
	if result != nil {
		body["result"] = result
	}
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrCommandRejected):
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, domain.ErrUnavailable):
		c.JSON(http.StatusBadGateway, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}
