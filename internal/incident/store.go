package incident

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"
)

var (
	// ErrConflict means Create lost a race: an active incident already
	// exists for the fingerprint. Transient; callers re-read and retry.
	ErrConflict = xerrors.New("active incident already exists for fingerprint")

	// ErrStaleWrite means Update was made against a version that is no
	// longer current. Transient; callers re-read and retry.
	ErrStaleWrite = xerrors.New("stale incident version")

	// ErrNotFound means the incident does not exist in the store.
	ErrNotFound = xerrors.New("incident not found")
)

// Store is the persistence interface for incidents. All coordination
// between concurrent ingesters flows through it: Create enforces the
// one-active-incident-per-fingerprint constraint and Update enforces
// version CAS, so the engine needs no locks of its own.
type Store interface {
	// GetByID retrieves an incident by ID.
	GetByID(ctx context.Context, id string) (*Incident, bool, error)

	// FindActiveByFingerprint returns the open-or-acknowledged incident
	// for a fingerprint, of which there is at most one.
	FindActiveByFingerprint(ctx context.Context, fp string) (*Incident, bool, error)

	// FindRecentlyResolved returns the most recently resolved incident
	// for the fingerprint whose ResolvedAt is at or after resolvedAfter.
	// Used for reopen matching inside the grace window.
	FindRecentlyResolved(ctx context.Context, fp string, resolvedAfter time.Time) (*Incident, bool, error)

	// Create persists a new incident at version 1. Fails with
	// ErrConflict if an active incident already holds the fingerprint.
	Create(ctx context.Context, in *Incident) (*Incident, error)

	// Update persists a mutated incident if the stored version still
	// matches in.Version, bumping the version on success. Fails with
	// ErrStaleWrite on version mismatch and ErrNotFound if the incident
	// does not exist.
	Update(ctx context.Context, in *Incident) (*Incident, error)
}
