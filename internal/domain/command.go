package domain

import (
	"encoding/json"
	"time"
)

// TestTrafficEndpoint and friends describe the canned synthetic request.
const (
	TestTrafficEndpoint   = "inventory/get_part"
	TestTrafficMethod     = "POST"
	TestTrafficPartNumber = "PART001"
)

// MigrationCommandResult is the acknowledgment of a set-migration command.
type MigrationCommandResult struct {
	Timestamp           string `json:"timestamp"`
	MigrationPercentage int    `json:"migration_percentage"`
	Success             bool   `json:"success"`
}

// FailedMigrationResult is the substitute result returned next to a Failure.
func FailedMigrationResult(now time.Time) MigrationCommandResult {
	return MigrationCommandResult{
		Success:             false,
		MigrationPercentage: 0,
		Timestamp:           now.UTC().Format(time.RFC3339Nano),
	}
}

// MigrationRequest is the body of POST /proxy/set_migration.
type MigrationRequest struct {
	Percentage int64 `json:"percentage"`
}

// ResetResult is the acknowledgment of POST /proxy/reset.
type ResetResult struct {
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Success   bool   `json:"success"`
}

// ProxiedRequest is the body of POST /proxy/request.
type ProxiedRequest struct {
	Data     map[string]any `json:"data"`
	Endpoint string         `json:"endpoint"`
	Method   string         `json:"method"`
}

// TestTrafficRequest returns the fixed synthetic payload.
func TestTrafficRequest() ProxiedRequest {
	return ProxiedRequest{
		Endpoint: TestTrafficEndpoint,
		Method:   TestTrafficMethod,
		Data:     map[string]any{"part_number": TestTrafficPartNumber},
	}
}

// RollbackRequest selects the rollback point either by request id or by timestamp.
type RollbackRequest struct {
	RequestID *int64 `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// RollbackResult is the acknowledgment of POST /proxy/rollback.
type RollbackResult struct {
	RolledBackInfo         json.RawMessage `json:"rolled_back_info,omitempty"`
	Message                string          `json:"message,omitempty"`
	Timestamp              string          `json:"timestamp,omitempty"`
	NewMigrationPercentage int             `json:"new_migration_percentage"`
	Success                bool            `json:"success"`
}

// ServiceConfig is the "config" object returned by GET /proxy/config.
type ServiceConfig struct {
	Raw                json.RawMessage `json:"-"`
	InvestmentRequired float64         `json:"investment_required"`
}

// DefaultInvestmentRequired is substituted when the config cannot be fetched.
const DefaultInvestmentRequired = 2500000

// DefaultServiceConfig is the fallback config.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{InvestmentRequired: DefaultInvestmentRequired}
}
