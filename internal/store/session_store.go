// Package store holds the in-memory session and answer caches that back a
// live dashboard connection, the reconciler that folds change-feed events
// into them, and the stats aggregator derived from their contents.
//
// A store instance is owned by exactly one connection goroutine: the SSE
// loop applies feed events to completion before reading, so no internal
// locking is needed. Concurrent writes by other clients are resolved
// last-writer-wins at the field level, as delivered by the feed.
package store

import (
	"github.com/google/uuid"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// SessionStore maps session id → session record, preserving arrival order.
type SessionStore struct {
	byID  map[uuid.UUID]*model.Session
	order []uuid.UUID
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[uuid.UUID]*model.Session)}
}

// Get returns the session with the given id, or nil.
func (s *SessionStore) Get(id uuid.UUID) *model.Session {
	return s.byID[id]
}

// Has reports whether a session with the given id is present.
func (s *SessionStore) Has(id uuid.UUID) bool {
	_, ok := s.byID[id]
	return ok
}

// Upsert inserts the record or replaces the existing one in place. A replaced
// record keeps its original position so arrival order stays stable.
func (s *SessionStore) Upsert(sess *model.Session) {
	if _, ok := s.byID[sess.ID]; !ok {
		s.order = append(s.order, sess.ID)
	}
	s.byID[sess.ID] = sess
}

// Remove deletes the record with the given id, if present.
func (s *SessionStore) Remove(id uuid.UUID) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// All returns copies of all sessions in arrival order.
func (s *SessionStore) All() []model.Session {
	out := make([]model.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// IDs returns all session ids in arrival order.
func (s *SessionStore) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of sessions held.
func (s *SessionStore) Len() int {
	return len(s.byID)
}
