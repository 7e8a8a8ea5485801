// Package misc holds small helpers shared across the dashboard: env lookups,
// retry schedules, request signing and typed pools.
package misc

import (
	"os"
	"strings"
)

// Getenv returns the trimmed value of key, or def when it is unset or blank.
func Getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetBool parses the usual yes/no spellings of key. Anything else yields def.
func GetBool(key string, def bool) bool {
	switch strings.ToLower(Getenv(key, "")) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}
