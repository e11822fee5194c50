package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/repository"
)

func TestStartSessionPublishesOnlyOnCreate(t *testing.T) {
	sessions := newFakeSessions()
	pub := &fakeFeed{}
	svc := NewSubmissionService(sessions, newFakeAnswers(), newFakeQueue(), pub, zerolog.Nop())

	testID, studentID := uuid.New(), uuid.New()

	first, err := svc.StartSession(context.Background(), testID, studentID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if first.Status != model.SessionStatusInProgress {
		t.Errorf("status = %s, want in_progress", first.Status)
	}
	if pub.sessions != 1 {
		t.Fatalf("published %d session changes after create, want 1", pub.sessions)
	}

	second, err := svc.StartSession(context.Background(), testID, studentID)
	if err != nil {
		t.Fatalf("StartSession again: %v", err)
	}
	if second.ID != first.ID {
		t.Error("re-entry should return the same session")
	}
	if pub.sessions != 1 {
		t.Errorf("published %d session changes after re-entry, want 1", pub.sessions)
	}
}

func TestSaveAnswerRejectsClosedSession(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusSubmitted}
	svc := NewSubmissionService(newFakeSessions(sess), newFakeAnswers(), newFakeQueue(), &fakeFeed{}, zerolog.Nop())

	if _, err := svc.SaveAnswer(context.Background(), sess.ID, uuid.New(), "late"); !errors.Is(err, ErrSessionNotLive) {
		t.Fatalf("err = %v, want ErrSessionNotLive", err)
	}
}

func TestSaveAnswerRejectsGradedAnswer(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	answers := newFakeAnswers()
	svc := NewSubmissionService(newFakeSessions(sess), answers, newFakeQueue(), &fakeFeed{}, zerolog.Nop())

	saved, err := svc.SaveAnswer(context.Background(), sess.ID, uuid.New(), "draft")
	if err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if _, err := answers.Grade(context.Background(), saved.ID, 5, true, uuid.New()); err != nil {
		t.Fatalf("grade fixture: %v", err)
	}

	if _, err := svc.SaveAnswer(context.Background(), sess.ID, saved.QuestionID, "overwrite"); !errors.Is(err, repository.ErrAnswerGraded) {
		t.Fatalf("err = %v, want ErrAnswerGraded", err)
	}
}

func TestQueueAnswerEnqueues(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	queue := newFakeQueue()
	svc := NewSubmissionService(newFakeSessions(sess), newFakeAnswers(), queue, &fakeFeed{}, zerolog.Nop())

	if err := svc.QueueAnswer(context.Background(), sess.ID, uuid.New(), "draft"); err != nil {
		t.Fatalf("QueueAnswer: %v", err)
	}
	if n := queue.len(config.WorkerKey.PersistAnswersQueue); n != 1 {
		t.Errorf("queued %d payloads, want 1", n)
	}
}

func TestSubmitTestAdvancesStatus(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	pub := &fakeFeed{}
	svc := NewSubmissionService(newFakeSessions(sess), newFakeAnswers(), newFakeQueue(), pub, zerolog.Nop())

	q1, q2 := uuid.New(), uuid.New()
	updated, err := svc.SubmitTest(context.Background(), sess.ID, model.SubmitTestRequest{
		Answers: map[string]string{q1.String(): "a", q2.String(): "b"},
	})
	if err != nil {
		t.Fatalf("SubmitTest: %v", err)
	}
	if updated.Status != model.SessionStatusSubmitted {
		t.Errorf("status = %s, want submitted", updated.Status)
	}
	if updated.SubmittedAt == nil {
		t.Error("submitted_at should be stamped")
	}
	if pub.answers != 2 {
		t.Errorf("published %d answer changes, want 2", pub.answers)
	}
	if pub.sessions != 1 {
		t.Errorf("published %d session changes, want 1", pub.sessions)
	}
}

func TestSubmitTestForcedTerminates(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	svc := NewSubmissionService(newFakeSessions(sess), newFakeAnswers(), newFakeQueue(), &fakeFeed{}, zerolog.Nop())

	updated, err := svc.SubmitTest(context.Background(), sess.ID, model.SubmitTestRequest{Forced: true})
	if err != nil {
		t.Fatalf("SubmitTest: %v", err)
	}
	if updated.Status != model.SessionStatusTerminated {
		t.Errorf("status = %s, want terminated", updated.Status)
	}
	if updated.SubmittedAt != nil {
		t.Error("forced submission must not stamp submitted_at")
	}
}

func TestSubmitTestFailedWriteKeepsSessionLive(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	sessions := newFakeSessions(sess)
	answers := newFakeAnswers()
	answers.failQID = uuid.New()
	svc := NewSubmissionService(sessions, answers, newFakeQueue(), &fakeFeed{}, zerolog.Nop())

	_, err := svc.SubmitTest(context.Background(), sess.ID, model.SubmitTestRequest{
		Answers: map[string]string{
			uuid.NewString():         "lands",
			answers.failQID.String(): "fails",
		},
	})
	if err == nil {
		t.Fatal("SubmitTest should fail when an answer write fails")
	}

	current, _ := sessions.GetByID(context.Background(), sess.ID)
	if current.Status != model.SessionStatusInProgress {
		t.Errorf("status = %s, want in_progress after failed submit", current.Status)
	}
}

func TestSubmitTestOnClosedSessionIsNoop(t *testing.T) {
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusTerminated}
	pub := &fakeFeed{}
	svc := NewSubmissionService(newFakeSessions(sess), newFakeAnswers(), newFakeQueue(), pub, zerolog.Nop())

	updated, err := svc.SubmitTest(context.Background(), sess.ID, model.SubmitTestRequest{})
	if err != nil {
		t.Fatalf("SubmitTest: %v", err)
	}
	if updated.Status != model.SessionStatusTerminated {
		t.Errorf("status = %s, want terminated", updated.Status)
	}
	if pub.sessions != 0 {
		t.Errorf("published %d session changes, want 0", pub.sessions)
	}
}
