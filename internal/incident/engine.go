package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/oncall/internal/alert"
)

// ErrCorrelationFailed means the retry budget was exhausted without a
// persisted decision. Retryable by the caller; no partial state was
// written.
var ErrCorrelationFailed = xerrors.New("correlation failed: retries exhausted")

// DefaultMaxAttempts bounds the optimistic-concurrency retry loop.
const DefaultMaxAttempts = 3

// IngestResult is what the engine decided for one alert.
type IngestResult struct {
	Incident *Incident
	Outcome  Outcome

	// PrevSeverity is the incident severity before this alert attached.
	// For created incidents it equals the new severity. It lets the
	// notification decider detect escalation without a second read.
	PrevSeverity alert.Severity
}

// Engine is the correlation core: for each alert it decides
// attach-to-existing vs reopen vs create-new, and persists that
// decision through the store's version checks. It holds no mutable
// state of its own, so one Engine serves any number of concurrent
// ingesters.
type Engine struct {
	store        Store
	fp           *Fingerprinter
	reopenWindow time.Duration
	maxAttempts  int
	logger       log.Logger
}

// NewEngine creates a correlation engine. maxAttempts <= 0 falls back
// to DefaultMaxAttempts; reopenWindow <= 0 disables reopen matching.
func NewEngine(store Store, fp *Fingerprinter, reopenWindow time.Duration, maxAttempts int, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Engine{
		store:        store,
		fp:           fp,
		reopenWindow: reopenWindow,
		maxAttempts:  maxAttempts,
		logger:       logger,
	}
}

// Ingest correlates one alert into an incident. The alert must already
// be validated and carry a ReceivedAt stamp. Two alerts for the same
// fingerprint arriving concurrently never both create an incident and
// never lose an attach: every write is guarded by the store's version
// check, and a detected conflict re-runs the decision from a fresh
// read, up to the attempt budget.
func (e *Engine) Ingest(ctx context.Context, al *alert.Alert) (*IngestResult, error) {
	fp, err := e.fp.Compute(al)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := e.tryIngest(ctx, fp, al)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrStaleWrite) {
			return nil, err
		}

		lastErr = err
		e.logger.Warn(ctx, "correlation write conflict, retrying",
			"fingerprint", fp,
			"attempt", attempt,
			"max_attempts", e.maxAttempts,
		)
	}

	return nil, fmt.Errorf("%w: fingerprint %s: %w", ErrCorrelationFailed, fp, lastErr)
}

// tryIngest runs one decision round against a fresh read of the store.
func (e *Engine) tryIngest(ctx context.Context, fp string, al *alert.Alert) (*IngestResult, error) {
	// Active incident owns the fingerprint: attach.
	if in, ok, err := e.store.FindActiveByFingerprint(ctx, fp); err != nil {
		return nil, err
	} else if ok {
		prev := in.Severity
		in.Attach(*al)
		updated, err := e.store.Update(ctx, in)
		if err != nil {
			return nil, err
		}
		return &IngestResult{Incident: updated, Outcome: OutcomeAttached, PrevSeverity: prev}, nil
	}

	// Recently resolved incident inside the grace window: reopen.
	if e.reopenWindow > 0 {
		cut := al.ReceivedAt.Add(-e.reopenWindow)
		if in, ok, err := e.store.FindRecentlyResolved(ctx, fp, cut); err != nil {
			return nil, err
		} else if ok {
			if err := Reopen(in, al.ReceivedAt); err != nil {
				return nil, err
			}
			prev := in.Severity
			in.Attach(*al)
			updated, err := e.store.Update(ctx, in)
			if err != nil {
				return nil, err
			}
			return &IngestResult{Incident: updated, Outcome: OutcomeReopened, PrevSeverity: prev}, nil
		}
	}

	// Fingerprint miss: create.
	in := New(ulid.Make().String(), fp, *al)
	created, err := e.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Incident: created, Outcome: OutcomeCreated, PrevSeverity: created.Severity}, nil
}
