package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/oncall/internal/alert"
	"github.com/linnemanlabs/oncall/internal/incident"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedIncident(id, fp string) *incident.Incident {
	return incident.New(id, fp, alert.Alert{
		Service:    "payments",
		Severity:   alert.SeverityWarning,
		Message:    "latency high",
		ReceivedAt: t0,
	})
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, seedIncident("inc-1", "fp-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Version != 1 {
		t.Errorf("Version = %d, want 1", created.Version)
	}

	got, ok, err := s.GetByID(ctx, "inc-1")
	if err != nil || !ok {
		t.Fatalf("GetByID: ok=%v err=%v", ok, err)
	}
	if got.Fingerprint != "fp-1" || got.Status != incident.StatusOpen {
		t.Errorf("got %+v, want open incident with fp-1", got)
	}

	if _, ok, _ := s.GetByID(ctx, "missing"); ok {
		t.Error("GetByID for unknown ID must report not found")
	}
}

func TestCreate_ActiveFingerprintConflict(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if _, err := s.Create(ctx, seedIncident("inc-1", "fp-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := s.Create(ctx, seedIncident("inc-2", "fp-1"))
	if !errors.Is(err, incident.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestUpdate_VersionCAS(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, seedIncident("inc-1", "fp-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// First writer wins.
	a := created.Clone()
	if err := incident.Acknowledge(a, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	updated, err := s.Update(ctx, a)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}

	// Second writer holds the old version and must be rejected.
	b := created.Clone()
	b.Attach(alert.Alert{Service: "payments", Severity: alert.SeverityCritical, Message: "m", ReceivedAt: t0})
	_, err = s.Update(ctx, b)
	if !errors.Is(err, incident.ErrStaleWrite) {
		t.Errorf("err = %v, want ErrStaleWrite", err)
	}

	_, err = s.Update(ctx, seedIncident("ghost", "fp-9"))
	if !errors.Is(err, incident.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCopyIsolation(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, seedIncident("inc-1", "fp-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Mutating a returned copy must not leak into the store.
	created.Status = incident.StatusResolved
	created.Alerts[0].Message = "tampered"
	created.Alerts[0].Labels = map[string]string{"x": "y"}

	got, _, _ := s.GetByID(ctx, "inc-1")
	if got.Status != incident.StatusOpen {
		t.Error("status mutation leaked into the store")
	}
	if got.Alerts[0].Message != "latency high" {
		t.Error("alert mutation leaked into the store")
	}
}

func TestIndexTransitions(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, seedIncident("inc-1", "fp-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, ok, _ := s.FindActiveByFingerprint(ctx, "fp-1"); !ok {
		t.Fatal("new incident must be findable by active fingerprint")
	}

	// Resolve: leaves the active index, joins the resolved index.
	if err := incident.Resolve(created, t0.Add(10*time.Minute)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	resolved, err := s.Update(ctx, created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok, _ := s.FindActiveByFingerprint(ctx, "fp-1"); ok {
		t.Error("resolved incident must not be active")
	}
	if _, ok, _ := s.FindRecentlyResolved(ctx, "fp-1", t0); !ok {
		t.Error("resolved incident must be findable in the grace window")
	}
	// Cutoff after the resolution time excludes it.
	if _, ok, _ := s.FindRecentlyResolved(ctx, "fp-1", t0.Add(11*time.Minute)); ok {
		t.Error("cutoff later than ResolvedAt must not match")
	}

	// Reopen: back into the active index, out of resolved.
	if err := incident.Reopen(resolved, t0.Add(12*time.Minute)); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if _, err := s.Update(ctx, resolved); err != nil {
		t.Fatalf("Update after reopen: %v", err)
	}
	if _, ok, _ := s.FindActiveByFingerprint(ctx, "fp-1"); !ok {
		t.Error("reopened incident must be active again")
	}
	if _, ok, _ := s.FindRecentlyResolved(ctx, "fp-1", t0); ok {
		t.Error("reopened incident must leave the resolved index")
	}
}

func TestUpdate_ReopenRace(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	first, err := s.Create(ctx, seedIncident("inc-1", "fp-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := incident.Resolve(first, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	resolved, err := s.Update(ctx, first)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A new incident claims the fingerprint while a reopen is in flight.
	if _, err := s.Create(ctx, seedIncident("inc-2", "fp-1")); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	if err := incident.Reopen(resolved, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	_, err = s.Update(ctx, resolved)
	if !errors.Is(err, incident.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict when another incident holds the fingerprint", err)
	}
}

func TestCreate_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)

	for i := range n {
		go func() {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, seedIncident(fmt.Sprintf("inc-%d", i), "fp-1"))
		}()
	}
	wg.Wait()

	var winners int
	for i := range n {
		switch {
		case errs[i] == nil:
			winners++
		case errors.Is(errs[i], incident.ErrConflict):
		default:
			t.Fatalf("create %d: %v", i, errs[i])
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}
