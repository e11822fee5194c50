package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates test session states.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusSubmitted  SessionStatus = "submitted"
	SessionStatusTerminated SessionStatus = "terminated"

	// Legacy spellings still emitted by older rows on the change feed.
	sessionStatusActive    SessionStatus = "active"
	sessionStatusCompleted SessionStatus = "completed"
)

// NormalizeStatus maps legacy status spellings onto the canonical set.
// Unknown values pass through untouched so the feed consumer can log them.
func NormalizeStatus(s SessionStatus) SessionStatus {
	switch s {
	case sessionStatusActive:
		return SessionStatusInProgress
	case sessionStatusCompleted:
		return SessionStatusSubmitted
	default:
		return s
	}
}

// IsLive reports whether a session may still receive answers and warnings.
func (s SessionStatus) IsLive() bool {
	n := NormalizeStatus(s)
	return n == SessionStatusInProgress || n == SessionStatusNotStarted
}

// Session represents one student's attempt at one test, denormalized with
// the student's identity for dashboard display.
type Session struct {
	ID                  uuid.UUID     `json:"id"`
	TestID              uuid.UUID     `json:"test_id"`
	StudentID           uuid.UUID     `json:"student_id"`
	StudentName         string        `json:"student_name,omitempty"`
	StudentEmail        string        `json:"student_email,omitempty"`
	Status              SessionStatus `json:"status"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	SubmittedAt         *time.Time    `json:"submitted_at,omitempty"`
	TotalWarnings       int           `json:"total_warnings"`
	TabSwitchCount      int           `json:"tab_switch_count"`
	FullscreenExitCount int           `json:"fullscreen_exit_count"`
}

// WarningPatch carries a partial warning-counter update. Each field is
// independently optional and written only if present.
type WarningPatch struct {
	TotalWarnings       *int `json:"total_warnings" binding:"omitempty,min=0"`
	TabSwitchCount      *int `json:"tab_switch_count" binding:"omitempty,min=0"`
	FullscreenExitCount *int `json:"fullscreen_exit_count" binding:"omitempty,min=0"`
}

// Empty reports whether the patch carries no fields.
func (p WarningPatch) Empty() bool {
	return p.TotalWarnings == nil && p.TabSwitchCount == nil && p.FullscreenExitCount == nil
}

// SubmitTestRequest is the payload for submitting a whole test.
type SubmitTestRequest struct {
	// Answers maps question id → final answer text.
	Answers map[string]string `json:"answers"`
	// Forced marks the submission as faculty-forced: the session lands in
	// terminated instead of submitted.
	Forced bool `json:"forced"`
}

// SubmitAnswerRequest is the payload for saving a single answer.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Answer     string `json:"answer" binding:"required,max=65536"`
}
