package cfg

import (
	"flag"
	"reflect"
	"strings"
	"testing"
)

// validBase returns a Config with all fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		FingerprintLabels:     "region,env",
		ReopenWindowMinutes:   15,
		CorrelationRetries:    3,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.FingerprintLabels != "region,env,cluster" {
		t.Errorf("FingerprintLabels = %q, want %q", c.FingerprintLabels, "region,env,cluster")
	}
	if c.ReopenWindowMinutes != 15 {
		t.Errorf("ReopenWindowMinutes = %d, want 15", c.ReopenWindowMinutes)
	}
	if c.CorrelationRetries != 3 {
		t.Errorf("CorrelationRetries = %d, want 3", c.CorrelationRetries)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/oncall",
		"-fingerprint-labels", "region",
		"-reopen-window-minutes", "5",
		"-correlation-retries", "5",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://localhost/oncall" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.FingerprintLabels != "region" {
		t.Errorf("FingerprintLabels = %q, want %q", c.FingerprintLabels, "region")
	}
	if c.ReopenWindowMinutes != 5 {
		t.Errorf("ReopenWindowMinutes = %d, want 5", c.ReopenWindowMinutes)
	}
	if c.CorrelationRetries != 5 {
		t.Errorf("CorrelationRetries = %d, want 5", c.CorrelationRetries)
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate valid config: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"drain too low", func(c *Config) { c.DrainSeconds = 0 }, "DRAIN_SECONDS"},
		{"drain too high", func(c *Config) { c.DrainSeconds = 301 }, "DRAIN_SECONDS"},
		{"budget not above drain", func(c *Config) { c.ShutdownBudgetSeconds = 60 }, "must be greater than"},
		{"bad port", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"negative reopen window", func(c *Config) { c.ReopenWindowMinutes = -1 }, "REOPEN_WINDOW_MINUTES"},
		{"zero retries", func(c *Config) { c.CorrelationRetries = 0 }, "CORRELATION_RETRIES"},
		{"too many retries", func(c *Config) { c.CorrelationRetries = 11 }, "CORRELATION_RETRIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestFingerprintLabelKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "region,env", []string{"region", "env"}},
		{"spaces and empties", " region , ,env, ", []string{"region", "env"}},
		{"empty", "", nil},
		{"only commas", ",,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Config{FingerprintLabels: tt.in}
			got := c.FingerprintLabelKeys()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FingerprintLabelKeys(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
