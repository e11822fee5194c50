package model

import "github.com/google/uuid"

// Question holds the grading ceiling for one question of a test. The full
// question body lives with the test content service; the grading workflow
// only needs the maximum awardable marks.
type Question struct {
	ID       uuid.UUID `json:"id"`
	TestID   uuid.UUID `json:"test_id"`
	MaxMarks float64   `json:"max_marks"`
}
