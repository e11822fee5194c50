package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// ErrAnswerGraded is returned when a submission tries to overwrite an answer
// that has already been graded.
var ErrAnswerGraded = errors.New("answer is already graded")

const answerColumns = `id, session_id, question_id, student_answer, marks_awarded, is_correct, graded_by, graded_at`

// AnswerRepository handles answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

func scanAnswer(row pgx.Row) (*model.Answer, error) {
	a := &model.Answer{}
	err := row.Scan(
		&a.ID, &a.SessionID, &a.QuestionID, &a.StudentAnswer,
		&a.MarksAwarded, &a.IsCorrect, &a.GradedBy, &a.GradedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Upsert records an answer through the UNIQUE (session_id, question_id)
// constraint: insert on first submission, overwrite the text on repeats.
// Graded answers are immutable to this path. The guarded DO UPDATE matches
// no row and the call reports ErrAnswerGraded.
func (r *AnswerRepository) Upsert(ctx context.Context, sessionID, questionID uuid.UUID, text string) (*model.Answer, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO answers (session_id, question_id, student_answer)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET student_answer = EXCLUDED.student_answer
		 WHERE answers.graded_by IS NULL
		 RETURNING `+answerColumns,
		sessionID, questionID, text,
	)

	a, err := scanAnswer(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAnswerGraded
	}
	return a, err
}

// GetByID retrieves a single answer.
func (r *AnswerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Answer, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE id = $1`, id,
	))
}

// Grade writes the grading outcome in one atomic statement and returns the
// updated row. Re-grading overwrites a previous grade.
func (r *AnswerRepository) Grade(ctx context.Context, id uuid.UUID, marks float64, isCorrect bool, graderID uuid.UUID) (*model.Answer, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`UPDATE answers
		 SET marks_awarded = $1, is_correct = $2, graded_by = $3, graded_at = NOW()
		 WHERE id = $4
		 RETURNING `+answerColumns,
		marks, isCorrect, graderID, id,
	))
}

// ListBySessions retrieves all answers belonging to the given session set,
// ordered by creation for stable dashboard arrival order.
func (r *AnswerRepository) ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) ([]model.Answer, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+`
		 FROM answers
		 WHERE session_id = ANY($1)
		 ORDER BY created_at ASC, id ASC`,
		sessionIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.QuestionID, &a.StudentAnswer,
			&a.MarksAwarded, &a.IsCorrect, &a.GradedBy, &a.GradedAt,
		); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
