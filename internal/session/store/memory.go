// Package store holds wizard sessions. Sessions are deliberately
// memory-only: the product discards wizard state on restart, so there is no
// Postgres twin of this store.
package store

import (
	"context"
	"sync"
	"time"

	"intake-gateway/internal/session/models"
	id "intake-gateway/pkg/domain"
	"intake-gateway/pkg/platform/sentinel"
)

// InMemorySessionStore is a mutex-guarded map of live sessions.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[id.SessionID]*models.Session),
	}
}

// Create registers a new session. Returns sentinel.ErrConflict if the ID is
// already present.
func (s *InMemorySessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// FindByID returns a deep copy of the session so callers never alias live
// state. Returns sentinel.ErrNotFound for unknown or abandoned sessions.
func (s *InMemorySessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return session.Clone(), nil
}

// Execute runs validate-then-mutate atomically under the store lock. The
// mutate callback sees the live session; its error aborts the whole
// operation with no partial change observable by other goroutines.
//
// This is the hook that makes stale-response discard airtight: a remote
// check result is applied inside Execute, where the generation comparison
// and the write are one critical section.
func (s *InMemorySessionStore) Execute(
	ctx context.Context,
	sessionID id.SessionID,
	validate func(*models.Session) error,
	mutate func(*models.Session) error,
) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	if validate != nil {
		if err := validate(session); err != nil {
			return nil, err
		}
	}

	// Mutate a clone and swap on success so a failing mutation leaves the
	// stored session untouched.
	work := session.Clone()
	if mutate != nil {
		if err := mutate(work); err != nil {
			return nil, err
		}
	}
	s.sessions[sessionID] = work
	return work.Clone(), nil
}

// Delete removes a session (explicit abandon or post-submission reset).
// Deleting an unknown session is not an error.
func (s *InMemorySessionStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// PurgeIdle drops sessions not touched since the cutoff and returns the IDs
// of the removed ones so callers can release attached resources. The
// janitor calls this on a timer.
func (s *InMemorySessionStore) PurgeIdle(ctx context.Context, cutoff time.Time) []id.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []id.SessionID
	for sid, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, sid)
			removed = append(removed, sid)
		}
	}
	return removed
}

// Len reports the number of live sessions (metrics gauge).
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
