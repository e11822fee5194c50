package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
)

// Grading errors.
var (
	ErrInvalidMarks   = errors.New("marks must be a finite non-negative number")
	ErrMarksExceedMax = errors.New("marks exceed the question's maximum")
)

// GradedAnswerRepo is the answer access grading needs.
type GradedAnswerRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Answer, error)
	Grade(ctx context.Context, id uuid.UUID, marks float64, isCorrect bool, graderID uuid.UUID) (*model.Answer, error)
}

// MaxMarksLookup resolves a question's grading ceiling.
type MaxMarksLookup interface {
	GetMaxMarks(ctx context.Context, questionID uuid.UUID) (float64, error)
}

// ChangeFeed publishes row changes after authoritative writes.
type ChangeFeed interface {
	PublishSessionChange(ctx context.Context, testID uuid.UUID, op feed.Operation, row any)
	PublishAnswerChange(ctx context.Context, op feed.Operation, row any)
}

// GradingService applies faculty grading decisions to answers.
type GradingService struct {
	answers   GradedAnswerRepo
	questions MaxMarksLookup
	pub       ChangeFeed
	log       zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(answers GradedAnswerRepo, questions MaxMarksLookup, pub ChangeFeed, log zerolog.Logger) *GradingService {
	return &GradingService{
		answers:   answers,
		questions: questions,
		pub:       pub,
		log:       log.With().Str("component", "grading_service").Logger(),
	}
}

// GradeAnswer validates and records a grade, then publishes the change.
// Marks must be finite and within [0, question max]. is_correct is derived,
// not client-supplied: any positive award counts as correct, zero as wrong.
// Re-grading the same answer overwrites the previous grade.
func (s *GradingService) GradeAnswer(ctx context.Context, answerID uuid.UUID, marks float64, graderID uuid.UUID) (*model.Answer, error) {
	if math.IsNaN(marks) || math.IsInf(marks, 0) || marks < 0 {
		return nil, ErrInvalidMarks
	}

	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		return nil, err
	}

	max, err := s.questions.GetMaxMarks(ctx, answer.QuestionID)
	if err != nil {
		return nil, err
	}
	if marks > max {
		return nil, ErrMarksExceedMax
	}

	graded, err := s.answers.Grade(ctx, answerID, marks, marks > 0, graderID)
	if err != nil {
		return nil, err
	}

	s.pub.PublishAnswerChange(ctx, feed.OpUpdate, graded)

	s.log.Info().
		Str("answer_id", answerID.String()).
		Float64("marks", marks).
		Str("graded_by", graderID.String()).
		Msg("Answer graded")

	return graded, nil
}
