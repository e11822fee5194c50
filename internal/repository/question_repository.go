package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository exposes the grading ceiling per question.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetMaxMarks returns the maximum awardable marks for a question.
func (r *QuestionRepository) GetMaxMarks(ctx context.Context, questionID uuid.UUID) (float64, error) {
	var max float64
	err := r.pool.QueryRow(ctx,
		`SELECT max_marks FROM questions WHERE id = $1`, questionID,
	).Scan(&max)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return max, nil
}
