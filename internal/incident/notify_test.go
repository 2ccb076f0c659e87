package incident

import (
	"testing"

	"github.com/linnemanlabs/oncall/internal/alert"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	in := newTestIncident()
	in.Severity = alert.SeverityCritical

	tests := []struct {
		name     string
		res      *IngestResult
		wantKind IntentKind
		wantNil  bool
	}{
		{
			name:     "created always notifies",
			res:      &IngestResult{Incident: in, Outcome: OutcomeCreated, PrevSeverity: alert.SeverityCritical},
			wantKind: IntentNewIncident,
		},
		{
			name:     "reopened always notifies",
			res:      &IngestResult{Incident: in, Outcome: OutcomeReopened, PrevSeverity: alert.SeverityCritical},
			wantKind: IntentReopened,
		},
		{
			name:    "attached without escalation is silent",
			res:     &IngestResult{Incident: in, Outcome: OutcomeAttached, PrevSeverity: alert.SeverityCritical},
			wantNil: true,
		},
		{
			name:     "attached with escalation notifies",
			res:      &IngestResult{Incident: in, Outcome: OutcomeAttached, PrevSeverity: alert.SeverityWarning},
			wantKind: IntentEscalated,
		},
		{
			name:    "attached with severity decrease is silent",
			res:     &IngestResult{Incident: func() *Incident { c := in.Clone(); c.Severity = alert.SeverityInfo; return c }(), Outcome: OutcomeAttached, PrevSeverity: alert.SeverityWarning},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			intent := Decide(tt.res)
			if tt.wantNil {
				if intent != nil {
					t.Fatalf("Decide() = %+v, want nil", intent)
				}
				return
			}
			if intent == nil {
				t.Fatal("Decide() = nil, want an intent")
			}
			if intent.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", intent.Kind, tt.wantKind)
			}
			if intent.IncidentID != tt.res.Incident.ID {
				t.Errorf("IncidentID = %q, want %q", intent.IncidentID, tt.res.Incident.ID)
			}
			if intent.Service != "payments" {
				t.Errorf("Service = %q, want payments", intent.Service)
			}
		})
	}
}
