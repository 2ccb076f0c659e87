// Package alertapi exposes the HTTP surface for alert ingestion and
// incident lifecycle commands.
package alertapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/oncall/internal/alert"
	"github.com/linnemanlabs/oncall/internal/incident"
)

// IncidentService defines the business operations alertapi needs.
type IncidentService interface {
	Submit(ctx context.Context, al *alert.Alert) (*incident.IngestResult, error)
	Get(ctx context.Context, id string) (*incident.Incident, bool, error)
	Acknowledge(ctx context.Context, id string, at time.Time) (*incident.Incident, error)
	Resolve(ctx context.Context, id string, at time.Time) (*incident.Incident, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IncidentService

	// auth guards the lifecycle command endpoints when set.
	auth func(http.Handler) http.Handler
}

// New creates a new API handler. auth may be nil (lifecycle commands
// unauthenticated).
func New(logger log.Logger, svc IncidentService, auth func(http.Handler) http.Handler) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("incident service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		auth:   auth,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", a.handleSubmitAlert)
		r.Get("/incidents/{id}", a.handleGetIncident)

		r.Group(func(r chi.Router) {
			if a.auth != nil {
				r.Use(a.auth)
			}
			r.Post("/incidents/{id}/ack", a.handleAcknowledge)
			r.Post("/incidents/{id}/resolve", a.handleResolve)
		})
	})
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("oncall.incident.id", id))

	in, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get incident", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("oncall.incident.status", string(in.Status)))

	writeJSON(w, http.StatusOK, in)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
