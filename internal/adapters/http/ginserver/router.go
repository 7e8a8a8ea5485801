package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter registers the dashboard API. metrics serves GET /metrics when non-nil.
func NewRouter(h *Handler, metrics http.Handler, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/", h.Index)
	r.GET("/ping", h.Ping)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	api.GET("/metrics", h.Metrics)
	api.POST("/metrics/refresh", h.Refresh)
	api.POST("/migration", h.SetMigration)
	api.POST("/reset", h.Reset)
	api.POST("/rollback", h.Rollback)
	api.POST("/test-traffic", h.TestTraffic)
	api.GET("/samples", h.Samples)
	api.GET("/health", h.Health)
	api.GET("/audit", h.AuditLog)

	proxy := api.Group("/proxy")
	proxy.GET("/config", h.ProxyConfig)
	proxy.GET("/history", h.ProxyHistory)
	proxy.GET("/requests/:id", h.ProxyRequestByID)
	proxy.GET("/rollback-states", h.ProxyRollbackStates)
	proxy.POST("/plan", h.ProxySavePlan)
	proxy.POST("/analyze-code", h.ProxyAnalyzeCode)
	proxy.POST("/validate-migration", h.ProxyValidate)
	proxy.GET("/validation-history", h.ProxyValidationHistory)
	proxy.GET("/next-step", h.ProxyNextStep)
	proxy.GET("/auto-scaling/metrics", h.ProxyScalingMetrics)
	proxy.GET("/auto-scaling/predict", h.ProxyScalingPredict)
	proxy.GET("/auto-scaling/recommendation", h.ProxyScalingRecommendation)
	proxy.POST("/auto-scaling/record-traffic", h.ProxyRecordTraffic)
	proxy.GET("/compliance/status", h.ProxyComplianceStatus)
	proxy.POST("/compliance/check", h.ProxyComplianceCheck)
	proxy.GET("/compliance/violations", h.ProxyComplianceViolations)
	proxy.GET("/health", h.ProxyHealth)

	return r
}
