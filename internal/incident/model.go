package incident

import (
	"time"

	"github.com/linnemanlabs/oncall/internal/alert"
)

// Status tracks where an incident is in its lifecycle.
type Status string

const (
	// StatusOpen means firing, nobody has taken it yet.
	StatusOpen Status = "open"

	// StatusAcknowledged means a responder has taken ownership.
	StatusAcknowledged Status = "acknowledged"

	// StatusResolved means the underlying condition cleared. Not
	// terminal: a matching alert inside the grace window reopens it.
	StatusResolved Status = "resolved"
)

// Outcome is the correlation engine's decision for one ingested alert.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeAttached Outcome = "attached"
	OutcomeReopened Outcome = "reopened"
)

// Incident is the mutable aggregate a fingerprint's alerts correlate
// into. Version is the optimistic-concurrency token: every successful
// store write bumps it, and Update rejects writers holding a stale one.
type Incident struct {
	ID          string         `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Status      Status         `json:"status"`
	Severity    alert.Severity `json:"severity"`

	CreatedAt time.Time `json:"created_at"`

	// CycleStartedAt is the start of the current open cycle: CreatedAt
	// for the first cycle, the reopen time afterwards. Acknowledge and
	// resolve timings are measured from here, not from CreatedAt, so
	// they stay meaningful across reopens.
	CycleStartedAt time.Time  `json:"cycle_started_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	ReopenCount int           `json:"reopen_count"`
	Alerts      []alert.Alert `json:"alerts"`

	Version uint64 `json:"version"`
}

// Active reports whether the incident still owns its fingerprint
// (open or acknowledged). At most one active incident may exist per
// fingerprint; the store enforces this.
func (in *Incident) Active() bool {
	return in.Status == StatusOpen || in.Status == StatusAcknowledged
}

// Attach appends an alert to the history and recomputes the aggregate
// severity. History is append-only and never reordered.
func (in *Incident) Attach(al alert.Alert) {
	in.Alerts = append(in.Alerts, al)
	in.Severity = alert.Max(in.Severity, al.Severity)
}

// TimeToAcknowledge returns the acknowledge latency for the current
// cycle, or false if the incident has not been acknowledged this cycle.
func (in *Incident) TimeToAcknowledge() (time.Duration, bool) {
	if in.AcknowledgedAt == nil {
		return 0, false
	}
	return in.AcknowledgedAt.Sub(in.CycleStartedAt), true
}

// TimeToResolve returns the resolve latency for the current cycle, or
// false if the incident is not resolved.
func (in *Incident) TimeToResolve() (time.Duration, bool) {
	if in.ResolvedAt == nil {
		return 0, false
	}
	return in.ResolvedAt.Sub(in.CycleStartedAt), true
}

// Clone returns a deep copy. Stores hand out and accept copies so
// callers never share mutable state with the store's own records.
func (in *Incident) Clone() *Incident {
	cp := *in
	if in.AcknowledgedAt != nil {
		t := *in.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}
	if in.ResolvedAt != nil {
		t := *in.ResolvedAt
		cp.ResolvedAt = &t
	}
	if in.Alerts != nil {
		cp.Alerts = make([]alert.Alert, len(in.Alerts))
		copy(cp.Alerts, in.Alerts)
	}
	return &cp
}

// New builds a fresh open incident from its first alert. CreatedAt is
// ingestion time of the triggering alert.
func New(id, fingerprint string, first alert.Alert) *Incident {
	return &Incident{
		ID:             id,
		Fingerprint:    fingerprint,
		Status:         StatusOpen,
		Severity:       first.Severity,
		CreatedAt:      first.ReceivedAt,
		CycleStartedAt: first.ReceivedAt,
		Alerts:         []alert.Alert{first},
	}
}
