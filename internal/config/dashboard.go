// Package config resolves dashboard settings from the environment, an optional .env file and CLI flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultServiceURL     = "http://localhost:8000"
	defaultListenAddr     = ":8081"
	defaultRequestTimeout = 10
	defaultPollInterval   = 5
	defaultSaveInterval   = 60
	defaultSamplesFile    = "samples.json"
	defaultSamplesLimit   = 500
)

// DashboardConfig is the resolved configuration of cmd/dashboard.
type DashboardConfig struct {
	ServiceURL     string
	Address        string
	Key            string
	DSN            string
	SamplesFile    string
	AuditFile      string
	AuditURL       string
	LogFile        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	SaveInterval   time.Duration
	SamplesLimit   int
	Retry          bool
	Breaker        bool
	LastWriteWins  bool
}

// LoadDotEnv loads the first readable file among paths into the process
// environment without overriding variables that are already set. It returns
// the loaded path, or "" when none exists.
func LoadDotEnv(paths ...string) (string, error) {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("load %s: %w", p, err)
		}
	}
	return "", nil
}

// LoadDashboardConfig resolves settings. ENV > CLI > defaults.
func LoadDashboardConfig(args []string, out io.Writer) (DashboardConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fset := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	fset.SetOutput(out)

	var (
		serviceOpt, addrOpt, keyOpt, dsnOpt, fileOpt string
		auditFileOpt, auditURLOpt, logFileOpt        string
		timeoutOpt, pollOpt, saveOpt, limitOpt       int
		retryOpt, breakerOpt, lwwOpt                 bool
	)

	fset.StringVar(&serviceOpt, "s", "", fmt.Sprintf("migration service URL, default: %s", defaultServiceURL))
	fset.StringVar(&addrOpt, "a", "", fmt.Sprintf("dashboard API listen address, default: %s", defaultListenAddr))
	fset.IntVar(&timeoutOpt, "t", -1, fmt.Sprintf("request timeout in seconds, default: %d", defaultRequestTimeout))
	fset.IntVar(&pollOpt, "p", -1, fmt.Sprintf("metrics poll interval in seconds (0 - manual refresh only), default: %d", defaultPollInterval))
	fset.IntVar(&saveOpt, "i", -1, fmt.Sprintf("samples file save interval in seconds (0 - on shutdown only), default: %d", defaultSaveInterval))
	fset.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 header")
	fset.StringVar(&dsnOpt, "d", "", "DATABASE_DSN for the Postgres sample history")
	fset.StringVar(&fileOpt, "f", "", fmt.Sprintf("samples file, default: %s", defaultSamplesFile))
	fset.IntVar(&limitOpt, "n", 0, fmt.Sprintf("in-memory sample history size, default: %d", defaultSamplesLimit))
	fset.StringVar(&auditFileOpt, "audit-file", "", "append command audit events to this file")
	fset.StringVar(&auditURLOpt, "audit-url", "", "POST command audit events to this URL")
	fset.StringVar(&logFileOpt, "log-file", "", "also write logs to this rotated file")
	fset.BoolVar(&retryOpt, "retry", false, "retry transport failures with backoff")
	fset.BoolVar(&breakerOpt, "breaker", false, "guard the migration service with a circuit breaker")
	fset.BoolVar(&lwwOpt, "lww", false, "apply metrics responses in completion order")

	if err := fset.Parse(args); err != nil {
		return DashboardConfig{}, err
	}

	service := normalizeServiceURL(FromEnvOrFlag("SERVICE_URL", serviceOpt, defaultServiceURL))
	if u, err := url.ParseRequestURI(service); err != nil || u.Host == "" {
		return DashboardConfig{}, fmt.Errorf("invalid service url: %q", service)
	}

	addr := normalizeListenAddr(FromEnvOrFlag("ADDRESS", addrOpt, defaultListenAddr))
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return DashboardConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	timeout, err := FromEnvOrFlagDuration("REQUEST_TIMEOUT", timeoutOpt, -1, defaultRequestTimeout)
	if err != nil {
		return DashboardConfig{}, err
	}
	if timeout <= 0 {
		return DashboardConfig{}, fmt.Errorf("request timeout must be > 0, got %v", timeout)
	}
	poll, err := FromEnvOrFlagDuration("POLL_INTERVAL", pollOpt, -1, defaultPollInterval)
	if err != nil {
		return DashboardConfig{}, err
	}
	if poll < 0 {
		return DashboardConfig{}, fmt.Errorf("poll interval must be >= 0, got %v", poll)
	}
	save, err := FromEnvOrFlagDuration("SAVE_INTERVAL", saveOpt, -1, defaultSaveInterval)
	if err != nil {
		return DashboardConfig{}, err
	}
	if save < 0 {
		return DashboardConfig{}, fmt.Errorf("save interval must be >= 0, got %v", save)
	}
	limit, err := FromEnvOrFlagInt("SAMPLES_LIMIT", limitOpt, defaultSamplesLimit, 1)
	if err != nil {
		return DashboardConfig{}, err
	}

	return DashboardConfig{
		ServiceURL:     service,
		Address:        addr,
		Key:            FromEnvOrFlag("KEY", keyOpt, ""),
		DSN:            FromEnvOrFlag("DATABASE_DSN", dsnOpt, ""),
		SamplesFile:    FromEnvOrFlag("SAMPLES_FILE", fileOpt, defaultSamplesFile),
		SamplesLimit:   limit,
		AuditFile:      FromEnvOrFlag("AUDIT_FILE", auditFileOpt, ""),
		AuditURL:       FromEnvOrFlag("AUDIT_URL", auditURLOpt, ""),
		LogFile:        FromEnvOrFlag("LOG_FILE", logFileOpt, ""),
		RequestTimeout: timeout,
		PollInterval:   poll,
		SaveInterval:   save,
		Retry:          FromEnvOrFlagBool("RETRY", retryOpt, false),
		Breaker:        FromEnvOrFlagBool("BREAKER", breakerOpt, false),
		LastWriteWins:  FromEnvOrFlagBool("LAST_WRITE_WINS", lwwOpt, false),
	}, nil
}

func normalizeServiceURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return defaultServiceURL
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + s
}

func normalizeListenAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultListenAddr
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
