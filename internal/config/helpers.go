package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/Migrascope/internal/misc"
)

// FromEnvOrFlag returns the environment value when present, otherwise the flag value, then def.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// FromEnvOrFlagBool resolves a switch. An unrecognized env value keeps def.
func FromEnvOrFlagBool(envKey string, flagVal, def bool) bool {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		return misc.GetBool(envKey, def)
	}
	if flagVal {
		return true
	}
	return def
}

// FromEnvOrFlagInt resolves an integer of at least min. A zero flag means unset.
// A malformed or too small env value is an error; a too small flag falls back to def.
func FromEnvOrFlagInt(envKey string, flagVal, def, min int) (int, error) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		n, err := strconv.Atoi(ev)
		if err != nil || n < min {
			return 0, fmt.Errorf("%s: want an integer >= %d, got %q", envKey, min, ev)
		}
		return n, nil
	}
	if flagVal != 0 && flagVal >= min {
		return flagVal, nil
	}
	return def, nil
}

// FromEnvOrFlagDuration resolves a duration. The env value is whole seconds or
// Go duration syntax; the flag is seconds and flagSentinel means unset.
func FromEnvOrFlagDuration(envKey string, flagSeconds, flagSentinel, defSeconds int) (time.Duration, error) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		if n, err := strconv.ParseInt(ev, 10, 64); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		if d, err := time.ParseDuration(ev); err == nil {
			return d, nil
		}
		return 0, fmt.Errorf("%s: invalid duration %q", envKey, ev)
	}
	if flagSeconds != flagSentinel {
		return time.Duration(flagSeconds) * time.Second, nil
	}
	return time.Duration(defSeconds) * time.Second, nil
}
