// Package alert defines the immutable inbound alert event and its
// severity ordering. Alerts are validated once at the edge and never
// mutated after ingestion.
package alert

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"
)

// ErrInvalid marks an alert rejected before any store interaction.
var ErrInvalid = xerrors.New("invalid alert")

// Severity is an ordered alert severity: info < warning < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of the severity. Unknown
// severities rank below info so they never win a max comparison.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Max returns the higher of the two severities.
func Max(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity validates and normalizes a severity string.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalid, s)
	}
}

// Alert is a single monitoring event. Timestamp is event time as
// reported by the source; ReceivedAt is ingestion time, assigned by the
// server. The two are kept separate so acknowledge/resolve timing stays
// accurate under delayed delivery.
type Alert struct {
	Service    string            `json:"service"`
	Severity   Severity          `json:"severity"`
	Message    string            `json:"message"`
	Labels     map[string]string `json:"labels,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Validate checks required fields. It is the only gate between raw
// input and the correlation engine; a validation failure has no side
// effects.
func (a *Alert) Validate() error {
	if a.Service == "" {
		return fmt.Errorf("%w: service is required", ErrInvalid)
	}
	if a.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalid)
	}
	if _, err := ParseSeverity(string(a.Severity)); err != nil {
		return err
	}
	return nil
}
