// Package memstore provides an in-memory implementation of
// incident.Store. Suitable for dev/testing and single-instance mode.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/oncall/internal/incident"
)

// Store holds incidents in memory. It enforces the same contract as
// the persistent store: at most one active incident per fingerprint,
// and version CAS on every update.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*incident.Incident // incident ID -> record
	active    map[string]string             // fingerprint -> active incident ID
	resolved  map[string]string             // fingerprint -> most recently resolved incident ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[string]*incident.Incident),
		active:    make(map[string]string),
		resolved:  make(map[string]string),
	}
}

// GetByID retrieves an incident by ID. Returns a copy.
func (s *Store) GetByID(_ context.Context, id string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	return in.Clone(), true, nil
}

// FindActiveByFingerprint returns the open-or-acknowledged incident for
// a fingerprint, if any. Returns a copy.
func (s *Store) FindActiveByFingerprint(_ context.Context, fp string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[fp]
	if !ok {
		return nil, false, nil
	}
	return s.incidents[id].Clone(), true, nil
}

// FindRecentlyResolved returns the most recently resolved incident for
// the fingerprint with ResolvedAt at or after resolvedAfter.
func (s *Store) FindRecentlyResolved(_ context.Context, fp string, resolvedAfter time.Time) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resolved[fp]
	if !ok {
		return nil, false, nil
	}
	in := s.incidents[id]
	if in.ResolvedAt == nil || in.ResolvedAt.Before(resolvedAfter) {
		return nil, false, nil
	}
	return in.Clone(), true, nil
}

// Create persists a new incident at version 1. Fails with ErrConflict
// if an active incident already holds the fingerprint.
func (s *Store) Create(_ context.Context, in *incident.Incident) (*incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.active[in.Fingerprint]; taken {
		return nil, incident.ErrConflict
	}

	cp := in.Clone()
	cp.Version = 1
	s.incidents[cp.ID] = cp
	if cp.Active() {
		s.active[cp.Fingerprint] = cp.ID
	}
	return cp.Clone(), nil
}

// Update persists a mutated incident under version CAS and maintains
// the fingerprint indexes across status transitions.
func (s *Store) Update(_ context.Context, in *incident.Incident) (*incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.incidents[in.ID]
	if !ok {
		return nil, incident.ErrNotFound
	}
	if cur.Version != in.Version {
		return nil, incident.ErrStaleWrite
	}

	cp := in.Clone()
	cp.Version++

	if cp.Active() {
		if holder, taken := s.active[cp.Fingerprint]; taken && holder != cp.ID {
			// Another incident took the fingerprint between this
			// caller's read and write (reopen race).
			return nil, incident.ErrConflict
		}
		s.active[cp.Fingerprint] = cp.ID
		if s.resolved[cp.Fingerprint] == cp.ID {
			delete(s.resolved, cp.Fingerprint)
		}
	} else {
		if s.active[cp.Fingerprint] == cp.ID {
			delete(s.active, cp.Fingerprint)
		}
		s.resolved[cp.Fingerprint] = cp.ID
	}

	s.incidents[cp.ID] = cp
	return cp.Clone(), nil
}
