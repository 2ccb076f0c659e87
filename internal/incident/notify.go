package incident

import (
	"context"

	"github.com/linnemanlabs/oncall/internal/alert"
)

// IntentKind classifies why responders should be paged.
type IntentKind string

const (
	IntentNewIncident IntentKind = "new_incident"
	IntentReopened    IntentKind = "reopened"
	IntentEscalated   IntentKind = "escalated"
)

// Intent is a decision to notify. It carries no transport detail; an
// external collaborator owns delivery, retries, and channel selection.
type Intent struct {
	IncidentID string
	Kind       IntentKind
	Severity   alert.Severity
	Service    string
}

// Notifier is the outbound transport collaborator. Implementations do
// the I/O; the core only ever hands them an Intent.
type Notifier interface {
	// Channel names the delivery channel for telemetry labels.
	Channel() string
	Send(ctx context.Context, intent *Intent, in *Incident) error
}

// Decide maps a correlation outcome to a notification intent, or nil
// when no notification is warranted. Created and reopened incidents
// always notify; an attach notifies only when the new alert raised the
// incident's severity.
func Decide(res *IngestResult) *Intent {
	in := res.Incident

	var kind IntentKind
	switch res.Outcome {
	case OutcomeCreated:
		kind = IntentNewIncident
	case OutcomeReopened:
		kind = IntentReopened
	case OutcomeAttached:
		if in.Severity.Rank() <= res.PrevSeverity.Rank() {
			return nil
		}
		kind = IntentEscalated
	default:
		return nil
	}

	return &Intent{
		IncidentID: in.ID,
		Kind:       kind,
		Severity:   in.Severity,
		Service:    in.service(),
	}
}

// service returns the service of the incident's first alert. History is
// never empty for a persisted incident, but guard anyway.
func (in *Incident) service() string {
	if len(in.Alerts) == 0 {
		return ""
	}
	return in.Alerts[0].Service
}
