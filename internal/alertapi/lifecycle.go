package alertapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/oncall/internal/incident"
)

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	a.handleTransition(w, r, "acknowledge", a.svc.Acknowledge)
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	a.handleTransition(w, r, "resolve", a.svc.Resolve)
}

// handleTransition runs one lifecycle command. Command time is
// server-assigned; the request carries no body.
func (a *API) handleTransition(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	cmd func(ctx context.Context, id string, at time.Time) (*incident.Incident, error),
) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("oncall.incident.id", id),
		attribute.String("oncall.lifecycle.command", name),
	)

	in, err := cmd(r.Context(), id, time.Time{})
	switch {
	case err == nil:
	case errors.Is(err, incident.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, incident.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, incident.ErrCorrelationFailed):
		a.logger.Warn(r.Context(), "lifecycle command exhausted retries", "id", id, "command", name, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "write contention, retry"})
		return
	default:
		a.logger.Error(r.Context(), err, "lifecycle command failed", "id", id, "command", name)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("oncall.incident.status", string(in.Status)))
	writeJSON(w, http.StatusOK, in)
}
