package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/oncall/internal/alert"
)

// Service is the business boundary for incident operations: alert
// submission (validation, correlation, telemetry, notification
// dispatch) and the human lifecycle commands (acknowledge, resolve).
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
}

// NewService creates an incident service. metrics and notifier may be
// nil (disabled).
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// Submit validates and correlates one alert. Validation failures are
// rejected before any store interaction. On success the correlation
// outcome is recorded in telemetry and, when the decision rules call
// for it, a notification is dispatched asynchronously.
func (s *Service) Submit(ctx context.Context, al *alert.Alert) (*IngestResult, error) {
	if err := al.Validate(); err != nil {
		return nil, err
	}
	if al.ReceivedAt.IsZero() {
		al.ReceivedAt = s.now()
	}
	if al.Timestamp.IsZero() {
		al.Timestamp = al.ReceivedAt
	}

	if s.metrics != nil {
		s.metrics.AlertsReceived.WithLabelValues(string(al.Severity), al.Service).Inc()
	}

	res, err := s.engine.Ingest(ctx, al)
	if err != nil {
		return nil, err
	}

	s.observeIngest(res)

	s.logger.Info(ctx, "alert correlated",
		"incident_id", res.Incident.ID,
		"fingerprint", res.Incident.Fingerprint,
		"outcome", res.Outcome,
		"severity", res.Incident.Severity,
		"reopen_count", res.Incident.ReopenCount,
	)

	if intent := Decide(res); intent != nil && s.notifier != nil {
		// Delivery must not block or be cancelled with the request.
		go s.dispatch(context.WithoutCancel(ctx), intent, res.Incident)
	}

	return res, nil
}

// Get retrieves an incident by ID.
func (s *Service) Get(ctx context.Context, id string) (*Incident, bool, error) {
	return s.store.GetByID(ctx, id)
}

// Acknowledge marks an incident as taken by a responder.
func (s *Service) Acknowledge(ctx context.Context, id string, at time.Time) (*Incident, error) {
	if at.IsZero() {
		at = s.now()
	}
	in, err := s.transition(ctx, id, func(in *Incident) error {
		return Acknowledge(in, at)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if d, ok := in.TimeToAcknowledge(); ok {
			s.metrics.MTTA.WithLabelValues(string(in.Severity)).Observe(d.Seconds())
		}
		s.metrics.IncidentsTotal.WithLabelValues(string(StatusAcknowledged), string(in.Severity)).Inc()
	}

	s.logger.Info(ctx, "incident acknowledged", "incident_id", in.ID, "severity", in.Severity)
	return in, nil
}

// Resolve closes an incident.
func (s *Service) Resolve(ctx context.Context, id string, at time.Time) (*Incident, error) {
	if at.IsZero() {
		at = s.now()
	}
	in, err := s.transition(ctx, id, func(in *Incident) error {
		return Resolve(in, at)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if d, ok := in.TimeToResolve(); ok {
			s.metrics.MTTR.WithLabelValues(string(in.Severity)).Observe(d.Seconds())
		}
		s.metrics.IncidentsTotal.WithLabelValues(string(StatusResolved), string(in.Severity)).Inc()
		s.metrics.OpenIncidents.WithLabelValues(string(in.Severity)).Dec()
	}

	s.logger.Info(ctx, "incident resolved", "incident_id", in.ID, "severity", in.Severity)
	return in, nil
}

// transition applies a lifecycle command under the same bounded
// optimistic-concurrency loop the correlation engine uses. Transition
// table violations surface immediately; only store version conflicts
// are retried.
func (s *Service) transition(ctx context.Context, id string, apply func(*Incident) error) (*Incident, error) {
	var lastErr error
	for attempt := 1; attempt <= DefaultMaxAttempts; attempt++ {
		in, ok, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		if err := apply(in); err != nil {
			return nil, err
		}

		updated, err := s.store.Update(ctx, in)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrStaleWrite) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: incident %s: %w", ErrCorrelationFailed, id, lastErr)
}

// observeIngest updates correlation telemetry for one ingest decision.
func (s *Service) observeIngest(res *IngestResult) {
	if s.metrics == nil {
		return
	}
	in := res.Incident
	sev := string(in.Severity)

	s.metrics.AlertsCorrelated.WithLabelValues(string(res.Outcome)).Inc()

	switch res.Outcome {
	case OutcomeCreated:
		s.metrics.IncidentsTotal.WithLabelValues(string(StatusOpen), sev).Inc()
		s.metrics.OpenIncidents.WithLabelValues(sev).Inc()
	case OutcomeReopened:
		s.metrics.OpenIncidents.WithLabelValues(sev).Inc()
	case OutcomeAttached:
		if in.Severity.Rank() > res.PrevSeverity.Rank() {
			// The incident changed severity bucket; move the gauge.
			s.metrics.OpenIncidents.WithLabelValues(string(res.PrevSeverity)).Dec()
			s.metrics.OpenIncidents.WithLabelValues(sev).Inc()
			s.metrics.Escalations.WithLabelValues(in.service(), "severity_escalated").Inc()
		}
	}
}

// dispatch hands an intent to the notification transport and records
// the delivery result. Delivery failures are logged, never retried
// here; retry policy belongs to the transport collaborator.
func (s *Service) dispatch(ctx context.Context, intent *Intent, in *Incident) {
	err := s.notifier.Send(ctx, intent, in)

	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error(ctx, err, "notification dispatch failed",
			"incident_id", intent.IncidentID,
			"kind", intent.Kind,
			"channel", s.notifier.Channel(),
		)
	}
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(s.notifier.Channel(), status).Inc()
	}
}
