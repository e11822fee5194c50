package store

import (
	"github.com/google/uuid"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// AnswerStore maps answer id → answer record, preserving arrival order.
type AnswerStore struct {
	byID  map[uuid.UUID]*model.Answer
	order []uuid.UUID
}

// NewAnswerStore creates an empty AnswerStore.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{byID: make(map[uuid.UUID]*model.Answer)}
}

// Get returns the answer with the given id, or nil.
func (s *AnswerStore) Get(id uuid.UUID) *model.Answer {
	return s.byID[id]
}

// Has reports whether an answer with the given id is present.
func (s *AnswerStore) Has(id uuid.UUID) bool {
	_, ok := s.byID[id]
	return ok
}

// Upsert inserts the record or replaces the existing one in place, keeping
// the original arrival position.
func (s *AnswerStore) Upsert(ans *model.Answer) {
	if _, ok := s.byID[ans.ID]; !ok {
		s.order = append(s.order, ans.ID)
	}
	s.byID[ans.ID] = ans
}

// Remove deletes the record with the given id, if present.
func (s *AnswerStore) Remove(id uuid.UUID) {
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

// All returns copies of all answers in arrival order.
func (s *AnswerStore) All() []model.Answer {
	out := make([]model.Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// BySession returns copies of the answers belonging to one session, stable
// in arrival order.
func (s *AnswerStore) BySession(sessionID uuid.UUID) []model.Answer {
	var out []model.Answer
	for _, id := range s.order {
		if a := s.byID[id]; a.SessionID == sessionID {
			out = append(out, *a)
		}
	}
	return out
}

// Len returns the number of answers held.
func (s *AnswerStore) Len() int {
	return len(s.byID)
}
