package domain

import (
	"math"
	"time"
)

const (
	// DefaultLegacyAvgTime is the legacy path latency (ms) assumed before the first fetch.
	DefaultLegacyAvgTime = 2847
	// DefaultCloudAvgTime is the cloud path latency (ms) assumed before the first fetch.
	DefaultCloudAvgTime = 87
	// Lakh is the divisor used to present cost savings in lakhs.
	Lakh = 100000
)

// MetricsSnapshot is the client-side view of the remote migration metrics.
type MetricsSnapshot struct {
	TotalRequests          int64   `json:"total_requests"`
	LegacyRequests         int64   `json:"legacy_requests"`
	CloudRequests          int64   `json:"cloud_requests"`
	ErrorCount             int64   `json:"error_count"`
	LegacyAvgTime          float64 `json:"legacy_avg_time"`
	CloudAvgTime           float64 `json:"cloud_avg_time"`
	CostSaved              float64 `json:"cost_saved"`
	PerformanceImprovement float64 `json:"performance_improvement"`
	MigrationPercentage    int     `json:"migration_percentage"`
}

// DefaultSnapshot returns a freshly built snapshot with the hard-coded defaults.
func DefaultSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		LegacyAvgTime: DefaultLegacyAvgTime,
		CloudAvgTime:  DefaultCloudAvgTime,
	}
}

// PerformanceGain is round(legacy/cloud), or 0 when the cloud average is zero.
// A ratio beyond the int64 range saturates.
func (s MetricsSnapshot) PerformanceGain() int64 {
	if s.CloudAvgTime == 0 {
		return 0
	}
	return RoundHalfUp(s.LegacyAvgTime / s.CloudAvgTime)
}

// CostSavedLakhs is round(cost_saved / 100000).
func (s MetricsSnapshot) CostSavedLakhs() int64 {
	return RoundHalfUp(s.CostSaved / Lakh)
}

// RoundHalfUp rounds to the nearest integer, ties toward +Inf.
// Values outside the int64 range saturate; NaN is 0.
func RoundHalfUp(v float64) int64 {
	r := math.Floor(v + 0.5)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= math.MaxInt64:
		return math.MaxInt64
	case r <= math.MinInt64:
		return math.MinInt64
	}
	return int64(r)
}

// FitsInt64 reports whether RoundHalfUp(v) is the exact rounded value of v.
func FitsInt64(v float64) bool {
	return !math.IsNaN(v) && v > math.MinInt64 && v < math.MaxInt64
}

// MetricsPatch is a decoded metrics response. Nil fields were absent and are left untouched on apply.
type MetricsPatch struct {
	TotalRequests          *int64   `json:"total_requests,omitempty"`
	LegacyRequests         *int64   `json:"legacy_requests,omitempty"`
	CloudRequests          *int64   `json:"cloud_requests,omitempty"`
	ErrorCount             *int64   `json:"error_count,omitempty"`
	LegacyAvgTime          *float64 `json:"legacy_avg_time,omitempty"`
	CloudAvgTime           *float64 `json:"cloud_avg_time,omitempty"`
	CostSaved              *float64 `json:"cost_saved,omitempty"`
	PerformanceImprovement *float64 `json:"performance_improvement,omitempty"`
	MigrationPercentage    *float64 `json:"migration_percentage,omitempty"`
}

// Empty reports whether the patch carries no known field.
func (p MetricsPatch) Empty() bool {
	return p == MetricsPatch{}
}

// ApplyTo overwrites every present field of s and returns the result.
func (p MetricsPatch) ApplyTo(s MetricsSnapshot) MetricsSnapshot {
	if p.TotalRequests != nil {
		s.TotalRequests = *p.TotalRequests
	}
	if p.LegacyRequests != nil {
		s.LegacyRequests = *p.LegacyRequests
	}
	if p.CloudRequests != nil {
		s.CloudRequests = *p.CloudRequests
	}
	if p.ErrorCount != nil {
		s.ErrorCount = *p.ErrorCount
	}
	if p.LegacyAvgTime != nil {
		s.LegacyAvgTime = *p.LegacyAvgTime
	}
	if p.CloudAvgTime != nil {
		s.CloudAvgTime = *p.CloudAvgTime
	}
	if p.CostSaved != nil {
		s.CostSaved = *p.CostSaved
	}
	if p.PerformanceImprovement != nil {
		s.PerformanceImprovement = *p.PerformanceImprovement
	}
	if p.MigrationPercentage != nil {
		s.MigrationPercentage = int(RoundHalfUp(*p.MigrationPercentage))
	}
	return s
}

// SyncPhase is the outcome of the most recently applied sync operation.
type SyncPhase string

const (
	// PhaseIdle means no fetch has completed yet.
	PhaseIdle SyncPhase = "idle"
	// PhaseApplied means the last completed fetch was merged into the snapshot.
	PhaseApplied SyncPhase = "applied"
	// PhaseDefaulted means the last completed fetch failed and readers see defaults.
	PhaseDefaulted SyncPhase = "defaulted"
)

// SyncStatus tells readers whether the snapshot reflects the remote service or a fallback.
type SyncStatus struct {
	UpdatedAt time.Time `json:"updated_at"`
	Phase     SyncPhase `json:"phase"`
	LastError string    `json:"last_error,omitempty"`
	Sequence  uint64    `json:"sequence"`
	Discarded uint64    `json:"discarded"`
	InFlight  int       `json:"in_flight"`
	Available bool      `json:"available"`
}

// Sample is one applied snapshot kept by the history repository.
type Sample struct {
	TakenAt  time.Time       `json:"taken_at"`
	Snapshot MetricsSnapshot `json:"snapshot"`
	Sequence uint64          `json:"sequence"`
}
