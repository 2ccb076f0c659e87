package incident

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"
)

// ErrInvalidTransition means a lifecycle command violates the
// transition table. Caller error, never retried.
var ErrInvalidTransition = xerrors.New("invalid incident transition")

// The transition table:
//
//	open -> acknowledged -> resolved
//	open -> resolved
//	resolved -> open (reopen, correlation engine only)
//
// Acknowledgement is sticky: acknowledged never goes back to open
// except through resolve + reopen.

// Acknowledge marks an open incident as taken by a responder.
func Acknowledge(in *Incident, at time.Time) error {
	if in.Status != StatusOpen {
		return fmt.Errorf("%w: cannot acknowledge incident %s in status %q", ErrInvalidTransition, in.ID, in.Status)
	}
	in.Status = StatusAcknowledged
	t := at
	in.AcknowledgedAt = &t
	return nil
}

// Resolve closes an open or acknowledged incident.
func Resolve(in *Incident, at time.Time) error {
	if !in.Active() {
		return fmt.Errorf("%w: cannot resolve incident %s in status %q", ErrInvalidTransition, in.ID, in.Status)
	}
	in.Status = StatusResolved
	t := at
	in.ResolvedAt = &t
	return nil
}

// Reopen returns a resolved incident to open and starts a new timing
// cycle. A fresh acknowledgement is required after reopen, so the
// previous AcknowledgedAt is cleared along with ResolvedAt.
func Reopen(in *Incident, at time.Time) error {
	if in.Status != StatusResolved {
		return fmt.Errorf("%w: cannot reopen incident %s in status %q", ErrInvalidTransition, in.ID, in.Status)
	}
	in.Status = StatusOpen
	in.ResolvedAt = nil
	in.AcknowledgedAt = nil
	in.ReopenCount++
	in.CycleStartedAt = at
	return nil
}
