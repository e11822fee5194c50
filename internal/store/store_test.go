package store

import (
	"testing"

	"github.com/google/uuid"

	"github.com/proctorhq/proctor-backend/internal/model"
)

func newSession(id uuid.UUID, status model.SessionStatus) *model.Session {
	return &model.Session{
		ID:        id,
		TestID:    uuid.New(),
		StudentID: uuid.New(),
		Status:    status,
	}
}

func newAnswer(id, sessionID uuid.UUID, text string) *model.Answer {
	return &model.Answer{
		ID:            id,
		SessionID:     sessionID,
		QuestionID:    uuid.New(),
		StudentAnswer: &text,
	}
}

func TestSessionStoreArrivalOrder(t *testing.T) {
	s := NewSessionStore()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		s.Upsert(newSession(id, model.SessionStatusInProgress))
	}

	// Re-upserting the first record must not move it.
	updated := newSession(ids[0], model.SessionStatusTerminated)
	s.Upsert(updated)

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	for i, id := range ids {
		if all[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}
	if all[0].Status != model.SessionStatusTerminated {
		t.Errorf("expected replaced record at original position, got status %s", all[0].Status)
	}
}

func TestSessionStoreRemove(t *testing.T) {
	s := NewSessionStore()
	id := uuid.New()
	s.Upsert(newSession(id, model.SessionStatusInProgress))

	s.Remove(id)
	if s.Len() != 0 || s.Get(id) != nil {
		t.Fatal("expected empty store after remove")
	}

	// Removing again is a no-op.
	s.Remove(id)
	if s.Len() != 0 {
		t.Fatal("second remove changed store state")
	}
}

func TestAnswerStoreBySession(t *testing.T) {
	s := NewAnswerStore()
	sessA := uuid.New()
	sessB := uuid.New()

	a1 := newAnswer(uuid.New(), sessA, "first")
	b1 := newAnswer(uuid.New(), sessB, "other")
	a2 := newAnswer(uuid.New(), sessA, "second")
	s.Upsert(a1)
	s.Upsert(b1)
	s.Upsert(a2)

	got := s.BySession(sessA)
	if len(got) != 2 {
		t.Fatalf("expected 2 answers for session, got %d", len(got))
	}
	if got[0].ID != a1.ID || got[1].ID != a2.ID {
		t.Error("BySession did not preserve arrival order")
	}
}

func TestComputeStatsClassification(t *testing.T) {
	grader := uuid.New()
	sessions := []model.Session{
		{ID: uuid.New(), Status: model.SessionStatusInProgress},
		{ID: uuid.New(), Status: "active"}, // legacy spelling
		{ID: uuid.New(), Status: model.SessionStatusSubmitted},
		{ID: uuid.New(), Status: "completed"}, // legacy spelling
		{ID: uuid.New(), Status: model.SessionStatusTerminated},
		{ID: uuid.New(), Status: model.SessionStatusNotStarted},
	}
	answers := []model.Answer{
		{ID: uuid.New(), GradedBy: &grader},
		{ID: uuid.New()},
		{ID: uuid.New()},
	}

	stats := ComputeStats(sessions, answers)

	if stats.TotalSessions != 6 {
		t.Errorf("TotalSessions = %d, want 6", stats.TotalSessions)
	}
	if stats.ActiveSessions != 2 {
		t.Errorf("ActiveSessions = %d, want 2", stats.ActiveSessions)
	}
	if stats.SubmittedSessions != 2 {
		t.Errorf("SubmittedSessions = %d, want 2", stats.SubmittedSessions)
	}
	if stats.TerminatedSessions != 1 {
		t.Errorf("TerminatedSessions = %d, want 1", stats.TerminatedSessions)
	}
	if stats.GradedAnswers != 1 || stats.PendingGrading != 2 {
		t.Errorf("graded/pending = %d/%d, want 1/2", stats.GradedAnswers, stats.PendingGrading)
	}
	if stats.GradedAnswers+stats.PendingGrading != stats.TotalAnswers {
		t.Error("invariant violated: graded + pending != total")
	}
}

func TestAtRiskSessions(t *testing.T) {
	risky := uuid.New()
	sessions := []model.Session{
		{ID: risky, Status: model.SessionStatusInProgress, TotalWarnings: 10},
		{ID: uuid.New(), Status: model.SessionStatusInProgress, TotalWarnings: 3},
		// Closed sessions are never flagged, however many warnings they hold.
		{ID: uuid.New(), Status: model.SessionStatusTerminated, TotalWarnings: 20},
	}

	ids := AtRiskSessions(sessions, 10)
	if len(ids) != 1 || ids[0] != risky {
		t.Fatalf("expected only the live high-warning session, got %v", ids)
	}

	if got := AtRiskSessions(sessions, 0); got != nil {
		t.Errorf("threshold 0 should disable the flag, got %v", got)
	}
}

func TestComputeStatsFreshSession(t *testing.T) {
	sessions := []model.Session{{ID: uuid.New(), Status: model.SessionStatusInProgress}}

	stats := ComputeStats(sessions, nil)

	if stats.TotalSessions != 1 {
		t.Fatalf("TotalSessions = %d, want 1", stats.TotalSessions)
	}
	if stats.TotalAnswers != 0 || stats.GradedAnswers != 0 || stats.PendingGrading != 0 {
		t.Error("fresh session should report zero answer counts")
	}
	if stats.SubmittedSessions != 0 || stats.TerminatedSessions != 0 {
		t.Error("fresh session should report zero submitted/terminated counts")
	}
}
