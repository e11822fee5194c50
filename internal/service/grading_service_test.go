package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/repository"
)

func newGradingFixture(t *testing.T, maxMarks float64) (*GradingService, *fakeAnswers, *fakeFeed, uuid.UUID, uuid.UUID) {
	t.Helper()

	questionID := uuid.New()
	answer := answerFixture(uuid.New(), questionID, "photosynthesis")
	answers := newFakeAnswers(answer)
	pub := &fakeFeed{}
	svc := NewGradingService(answers, fakeQuestions{questionID: maxMarks}, pub, zerolog.Nop())
	return svc, answers, pub, answer.ID, questionID
}

func TestGradeAnswerPositiveMarks(t *testing.T) {
	svc, _, pub, answerID, _ := newGradingFixture(t, 10)
	grader := uuid.New()

	graded, err := svc.GradeAnswer(context.Background(), answerID, 5, grader)
	if err != nil {
		t.Fatalf("GradeAnswer: %v", err)
	}
	if graded.MarksAwarded == nil || *graded.MarksAwarded != 5 {
		t.Fatalf("marks = %v, want 5", graded.MarksAwarded)
	}
	if graded.IsCorrect == nil || !*graded.IsCorrect {
		t.Error("is_correct should be true for positive marks")
	}
	if !graded.Graded() {
		t.Error("answer should be graded")
	}
	if graded.GradedBy == nil || *graded.GradedBy != grader {
		t.Errorf("graded_by = %v, want %s", graded.GradedBy, grader)
	}
	if pub.answers != 1 {
		t.Errorf("published %d answer changes, want 1", pub.answers)
	}
}

func TestGradeAnswerZeroMarksIsWrong(t *testing.T) {
	svc, _, _, answerID, _ := newGradingFixture(t, 10)

	graded, err := svc.GradeAnswer(context.Background(), answerID, 0, uuid.New())
	if err != nil {
		t.Fatalf("GradeAnswer: %v", err)
	}
	if graded.IsCorrect == nil || *graded.IsCorrect {
		t.Error("is_correct should be false for zero marks")
	}
	if !graded.Graded() {
		t.Error("zero-mark answer is still graded")
	}
}

func TestGradeAnswerRejectsInvalidMarks(t *testing.T) {
	svc, _, pub, answerID, _ := newGradingFixture(t, 10)

	for _, marks := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := svc.GradeAnswer(context.Background(), answerID, marks, uuid.New()); !errors.Is(err, ErrInvalidMarks) {
			t.Errorf("marks %v: err = %v, want ErrInvalidMarks", marks, err)
		}
	}
	if pub.answers != 0 {
		t.Errorf("published %d changes on rejected grades, want 0", pub.answers)
	}
}

func TestGradeAnswerRejectsMarksAboveMax(t *testing.T) {
	svc, _, _, answerID, _ := newGradingFixture(t, 10)

	if _, err := svc.GradeAnswer(context.Background(), answerID, 10.5, uuid.New()); !errors.Is(err, ErrMarksExceedMax) {
		t.Fatalf("err = %v, want ErrMarksExceedMax", err)
	}
}

func TestGradeAnswerNotFound(t *testing.T) {
	svc, _, _, _, _ := newGradingFixture(t, 10)

	if _, err := svc.GradeAnswer(context.Background(), uuid.New(), 5, uuid.New()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGradeAnswerRegrade(t *testing.T) {
	svc, _, _, answerID, _ := newGradingFixture(t, 10)
	grader := uuid.New()

	if _, err := svc.GradeAnswer(context.Background(), answerID, 3, grader); err != nil {
		t.Fatalf("first grade: %v", err)
	}
	regraded, err := svc.GradeAnswer(context.Background(), answerID, 0, grader)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if *regraded.MarksAwarded != 0 || *regraded.IsCorrect {
		t.Errorf("regrade = (%v, %v), want (0, false)", *regraded.MarksAwarded, *regraded.IsCorrect)
	}
}
