// Package telemetry exports sync and command outcomes in Prometheus format.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
)

const namespace = "migrascope"

// Recorder counts outcomes on its own registry.
type Recorder struct {
	reg      *prometheus.Registry
	fetches  *prometheus.CounterVec
	commands *prometheus.CounterVec
}

var _ ports.SyncRecorder = (*Recorder)(nil)

// New registers the counters plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_fetches_total",
			Help:      "Completed metrics fetches by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands by name and result.",
		}, []string{"command", "result"}),
	}
	r.reg.MustRegister(
		r.fetches,
		r.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// FetchCompleted implements ports.SyncRecorder.
func (r *Recorder) FetchCompleted(outcome string) {
	r.fetches.WithLabelValues(outcome).Inc()
}

// CommandCompleted implements ports.SyncRecorder.
func (r *Recorder) CommandCompleted(command string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.commands.WithLabelValues(command, result).Inc()
}

// Watch exports the public snapshot and availability as gauges read on every scrape.
func (r *Recorder) Watch(view func() (domain.MetricsSnapshot, domain.SyncStatus)) {
	gauge := func(name, help string, fn func(domain.MetricsSnapshot, domain.SyncStatus) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return fn(view())
		})
	}
	r.reg.MustRegister(
		gauge("migration_percentage", "Share of traffic routed to the cloud path.",
			func(s domain.MetricsSnapshot, _ domain.SyncStatus) float64 { return float64(s.MigrationPercentage) }),
		gauge("requests", "Total requests seen by the migration service.",
			func(s domain.MetricsSnapshot, _ domain.SyncStatus) float64 { return float64(s.TotalRequests) }),
		gauge("errors", "Errors reported by the migration service.",
			func(s domain.MetricsSnapshot, _ domain.SyncStatus) float64 { return float64(s.ErrorCount) }),
		gauge("performance_gain", "Rounded legacy/cloud latency ratio.",
			func(s domain.MetricsSnapshot, _ domain.SyncStatus) float64 { return float64(s.PerformanceGain()) }),
		gauge("remote_available", "1 when the last completed fetch succeeded.",
			func(_ domain.MetricsSnapshot, st domain.SyncStatus) float64 {
				if st.Available {
					return 1
				}
				return 0
			}),
	)
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
