package alertapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/oncall/internal/alert"
	"github.com/linnemanlabs/oncall/internal/incident"
)

// submitRequest is the inbound alert payload.
type submitRequest struct {
	Service   string            `json:"service"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
}

// submitResponse reports the correlation decision for one alert.
type submitResponse struct {
	IncidentID string           `json:"incident_id"`
	Outcome    incident.Outcome `json:"outcome"`
	Severity   alert.Severity   `json:"severity"`
}

func (a *API) handleSubmitAlert(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	al := &alert.Alert{
		Service:   req.Service,
		Severity:  alert.Severity(req.Severity),
		Message:   req.Message,
		Labels:    req.Labels,
		Timestamp: req.Timestamp,
	}

	res, err := a.svc.Submit(r.Context(), al)
	switch {
	case err == nil:
	case errors.Is(err, alert.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, incident.ErrCorrelationFailed):
		// Transient contention; the caller may resubmit.
		a.logger.Warn(r.Context(), "alert submission exhausted retries", "service", req.Service, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "correlation contention, retry"})
		return
	default:
		a.logger.Error(r.Context(), err, "alert submission failed", "service", req.Service)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("oncall.incident.id", res.Incident.ID),
		attribute.String("oncall.correlation.outcome", string(res.Outcome)),
	)

	writeJSON(w, http.StatusCreated, submitResponse{
		IncidentID: res.Incident.ID,
		Outcome:    res.Outcome,
		Severity:   res.Incident.Severity,
	})
}
