// Package cfg holds application-level configuration for the oncall
// server, following the shared RegisterFlags/Validate convention.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config carries the knobs main needs beyond the common go-core
// package configs.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	SlackWebhookURL       string
	APIToken              string

	// FingerprintLabels is the comma-separated subset of alert labels
	// that participate in correlation keys. Empty means service-only
	// fingerprints.
	FingerprintLabels string

	// ReopenWindowMinutes is the grace window after resolution during
	// which a matching alert reopens the incident instead of creating a
	// new one. 0 disables reopening.
	ReopenWindowMinutes int

	// CorrelationRetries bounds the optimistic-concurrency retry loop.
	CorrelationRetries int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for responder notifications")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required for lifecycle commands (empty = no auth)")
	fs.StringVar(&c.FingerprintLabels, "fingerprint-labels", "region,env,cluster", "comma-separated alert labels used in correlation fingerprints")
	fs.IntVar(&c.ReopenWindowMinutes, "reopen-window-minutes", 15, "grace window in minutes during which matching alerts reopen a resolved incident (0 = disabled)")
	fs.IntVar(&c.CorrelationRetries, "correlation-retries", 3, "max attempts for the correlation write-conflict retry loop (1..10)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}
	if c.ReopenWindowMinutes < 0 {
		errs = append(errs, fmt.Errorf("invalid REOPEN_WINDOW_MINUTES %d (must be >= 0)", c.ReopenWindowMinutes))
	}
	if c.CorrelationRetries <= 0 || c.CorrelationRetries > 10 {
		errs = append(errs, fmt.Errorf("invalid CORRELATION_RETRIES %d (must be 1..10)", c.CorrelationRetries))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// FingerprintLabelKeys parses FingerprintLabels into a clean key slice.
func (c *Config) FingerprintLabelKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.FingerprintLabels, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
