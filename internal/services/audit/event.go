// Package audit records operator commands sent to the migration service.
package audit

// Event records one operator command sent to the migration service.
type Event struct {
	Percentage *int64 `json:"percentage,omitempty"`
	Command    string `json:"command"`
	Error      string `json:"error,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Timestamp  int64  `json:"ts"`
	Success    bool   `json:"success"`
}

// Command names carried by Event.Command.
const (
	CommandSetMigration = "set_migration"
	CommandReset        = "reset"
	CommandRollback     = "rollback"
	CommandTestTraffic  = "test_traffic"
)
