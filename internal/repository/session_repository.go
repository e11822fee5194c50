package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("record not found")

const sessionColumns = `
	s.id, s.test_id, s.student_id, p.name, p.email, s.status,
	s.started_at, s.submitted_at,
	s.total_warnings, s.tab_switch_count, s.fullscreen_exit_count`

// SessionRepository handles test session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(
		&s.ID, &s.TestID, &s.StudentID, &s.StudentName, &s.StudentEmail, &s.Status,
		&s.StartedAt, &s.SubmittedAt,
		&s.TotalWarnings, &s.TabSwitchCount, &s.FullscreenExitCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetOrCreate returns the unique (test, student) session, creating it with
// status in_progress when absent. The UNIQUE (test_id, student_id) constraint
// makes concurrent create races converge on one row; the returned flag
// reports whether this call created it.
func (r *SessionRepository) GetOrCreate(ctx context.Context, testID, studentID uuid.UUID) (*model.Session, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (test_id, student_id, status, started_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (test_id, student_id) DO NOTHING
		 RETURNING id`,
		testID, studentID, model.SessionStatusInProgress,
	).Scan(&id)

	created := true
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("insert session: %w", err)
		}
		// Lost the race or the session already existed.
		created = false
	}

	var sess *model.Session
	if created {
		sess, err = r.GetByID(ctx, id)
	} else {
		sess, err = r.getByTestAndStudent(ctx, testID, studentID)
	}
	if err != nil {
		return nil, false, err
	}
	return sess, created, nil
}

func (r *SessionRepository) getByTestAndStudent(ctx context.Context, testID, studentID uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions s
		 JOIN profiles p ON s.student_id = p.id
		 WHERE s.test_id = $1 AND s.student_id = $2`,
		testID, studentID,
	))
}

// GetByID retrieves a session with denormalized student identity.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions s
		 JOIN profiles p ON s.student_id = p.id
		 WHERE s.id = $1`,
		id,
	))
}

// ListByTest retrieves all sessions for a test ordered by start time (the
// arrival order the dashboard stores preserve).
func (r *SessionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions s
		 JOIN profiles p ON s.student_id = p.id
		 WHERE s.test_id = $1
		 ORDER BY s.started_at ASC NULLS LAST, s.id ASC`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(
			&s.ID, &s.TestID, &s.StudentID, &s.StudentName, &s.StudentEmail, &s.Status,
			&s.StartedAt, &s.SubmittedAt,
			&s.TotalWarnings, &s.TabSwitchCount, &s.FullscreenExitCount,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateStatus transitions a session's status in one atomic statement and
// returns the updated row. submitted_at is stamped only when stampSubmittedAt
// is set and the column is still null (retries keep the first stamp).
func (r *SessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus, stampSubmittedAt bool) (*model.Session, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1,
		     submitted_at = CASE WHEN $2 AND submitted_at IS NULL THEN NOW() ELSE submitted_at END
		 WHERE id = $3`,
		status, stampSubmittedAt, id,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// UpdateWarnings applies a partial warning-counter patch. Only fields present
// in the patch are written, and each counter only moves forward: GREATEST
// keeps an at-least-once replay of an older absolute count from regressing
// the stored value.
func (r *SessionRepository) UpdateWarnings(ctx context.Context, id uuid.UUID, patch model.WarningPatch) (*model.Session, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}

	set := ""
	args := []any{id}
	appendField := func(column string, value int) {
		args = append(args, value)
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = GREATEST(%s, $%d)", column, column, len(args))
	}

	if patch.TotalWarnings != nil {
		appendField("total_warnings", *patch.TotalWarnings)
	}
	if patch.TabSwitchCount != nil {
		appendField("tab_switch_count", *patch.TabSwitchCount)
	}
	if patch.FullscreenExitCount != nil {
		appendField("fullscreen_exit_count", *patch.FullscreenExitCount)
	}

	tag, err := r.pool.Exec(ctx, "UPDATE test_sessions SET "+set+" WHERE id = $1", args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// IncrementViolation bumps total_warnings plus the counter matching the
// event type in one atomic statement, returning the updated row.
func (r *SessionRepository) IncrementViolation(ctx context.Context, id uuid.UUID, eventType model.MonitoringEventType) (*model.Session, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET total_warnings = total_warnings + 1,
		     tab_switch_count = tab_switch_count + CASE WHEN $1 = 'tab_switch' THEN 1 ELSE 0 END,
		     fullscreen_exit_count = fullscreen_exit_count + CASE WHEN $1 = 'fullscreen_exit' THEN 1 ELSE 0 END
		 WHERE id = $2`,
		string(eventType), id,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
