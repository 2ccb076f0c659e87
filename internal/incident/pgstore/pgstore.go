// Package pgstore provides a PostgreSQL implementation of
// incident.Store. The one-active-incident-per-fingerprint invariant is
// enforced by a partial unique index, and updates use a version column
// for optimistic concurrency.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/oncall/internal/alert"
	"github.com/linnemanlabs/oncall/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/oncall/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Store persists incidents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool stays
// owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const incidentColumns = `id, fingerprint, status, severity, created_at, cycle_started_at,
	acknowledged_at, resolved_at, reopen_count, alerts, version`

// GetByID retrieves an incident by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*incident.Incident, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetByID", "SELECT")
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	in, err := scanIncident(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if in == nil {
		return nil, false, nil
	}
	return in, true, nil
}

// FindActiveByFingerprint returns the open-or-acknowledged incident for
// a fingerprint. The partial unique index guarantees at most one row.
func (s *Store) FindActiveByFingerprint(ctx context.Context, fp string) (*incident.Incident, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.FindActiveByFingerprint", "SELECT")
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE fingerprint = $1 AND status <> 'resolved'`
	in, err := scanIncident(s.pool.QueryRow(ctx, query, fp))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if in == nil {
		return nil, false, nil
	}
	return in, true, nil
}

// FindRecentlyResolved returns the most recently resolved incident for
// the fingerprint with resolved_at at or after resolvedAfter.
func (s *Store) FindRecentlyResolved(ctx context.Context, fp string, resolvedAfter time.Time) (*incident.Incident, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.FindRecentlyResolved", "SELECT")
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents
		WHERE fingerprint = $1 AND status = 'resolved' AND resolved_at >= $2
		ORDER BY resolved_at DESC LIMIT 1`
	in, err := scanIncident(s.pool.QueryRow(ctx, query, fp, resolvedAfter))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if in == nil {
		return nil, false, nil
	}
	return in, true, nil
}

// Create inserts a new incident at version 1. A unique violation on the
// active-fingerprint index maps to incident.ErrConflict.
func (s *Store) Create(ctx context.Context, in *incident.Incident) (*incident.Incident, error) {
	ctx, span := s.startSpan(ctx, "pgstore.Create", "INSERT")
	defer span.End()

	alerts, err := json.Marshal(in.Alerts)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("marshal alerts: %w", err))
	}

	query := `INSERT INTO incidents (` + incidentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)`
	_, err = s.pool.Exec(ctx, query,
		in.ID, in.Fingerprint, string(in.Status), string(in.Severity),
		in.CreatedAt, in.CycleStartedAt, in.AcknowledgedAt, in.ResolvedAt,
		in.ReopenCount, alerts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, incident.ErrConflict
		}
		return nil, spanErr(span, fmt.Errorf("insert incident: %w", err))
	}

	cp := in.Clone()
	cp.Version = 1
	return cp, nil
}

// Update writes a mutated incident if the stored version still matches
// in.Version. Zero rows affected means either a stale version or a
// missing row; a unique violation means a reopen lost the fingerprint
// to a newly created incident.
func (s *Store) Update(ctx context.Context, in *incident.Incident) (*incident.Incident, error) {
	ctx, span := s.startSpan(ctx, "pgstore.Update", "UPDATE")
	defer span.End()

	alerts, err := json.Marshal(in.Alerts)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("marshal alerts: %w", err))
	}

	query := `UPDATE incidents SET
			status = $3, severity = $4, cycle_started_at = $5,
			acknowledged_at = $6, resolved_at = $7, reopen_count = $8,
			alerts = $9, version = version + 1
		WHERE id = $1 AND version = $2`
	tag, err := s.pool.Exec(ctx, query,
		in.ID, in.Version, string(in.Status), string(in.Severity),
		in.CycleStartedAt, in.AcknowledgedAt, in.ResolvedAt,
		in.ReopenCount, alerts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, incident.ErrConflict
		}
		return nil, spanErr(span, fmt.Errorf("update incident: %w", err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, in.ID).Scan(&exists); err != nil {
			return nil, spanErr(span, fmt.Errorf("check incident existence: %w", err))
		}
		if !exists {
			return nil, incident.ErrNotFound
		}
		return nil, incident.ErrStaleWrite
	}

	cp := in.Clone()
	cp.Version = in.Version + 1
	return cp, nil
}

func (s *Store) startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// scanIncident scans one incident row, returning (nil, nil) when the
// row does not exist.
func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var (
		in     incident.Incident
		status string
		sev    string
		alerts []byte
	)
	err := row.Scan(
		&in.ID, &in.Fingerprint, &status, &sev, &in.CreatedAt, &in.CycleStartedAt,
		&in.AcknowledgedAt, &in.ResolvedAt, &in.ReopenCount, &alerts, &in.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	in.Status = incident.Status(status)
	in.Severity = alert.Severity(sev)
	if err := json.Unmarshal(alerts, &in.Alerts); err != nil {
		return nil, fmt.Errorf("unmarshal alert history: %w", err)
	}
	return &in, nil
}
