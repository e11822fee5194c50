package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer represents a student's answer to one question within a session.
// One row exists per (session, question) pair. Nullable columns map to
// pointers; an answer is graded iff GradedBy is non-nil.
type Answer struct {
	ID            uuid.UUID  `json:"id"`
	SessionID     uuid.UUID  `json:"session_id"`
	QuestionID    uuid.UUID  `json:"question_id"`
	StudentAnswer *string    `json:"student_answer,omitempty"`
	MarksAwarded  *float64   `json:"marks_awarded,omitempty"`
	IsCorrect     *bool      `json:"is_correct,omitempty"`
	GradedBy      *uuid.UUID `json:"graded_by,omitempty"`
	GradedAt      *time.Time `json:"graded_at,omitempty"`
}

// Graded reports whether this answer has been graded.
func (a *Answer) Graded() bool {
	return a.GradedBy != nil
}

// GradeAnswerRequest is the payload for grading an answer.
type GradeAnswerRequest struct {
	Marks float64 `json:"marks" binding:"min=0"`
}

// QueuedAnswer is the Redis queue payload for asynchronous answer autosave.
type QueuedAnswer struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answer     string    `json:"answer"`
}
