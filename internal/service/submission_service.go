package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/repository"
)

// ErrSessionNotLive is returned when a write targets a session that has
// already been submitted or terminated.
var ErrSessionNotLive = errors.New("session is no longer accepting changes")

// SessionRepo is the session access the submission workflows need.
type SessionRepo interface {
	GetOrCreate(ctx context.Context, testID, studentID uuid.UUID) (*model.Session, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus, stampSubmittedAt bool) (*model.Session, error)
}

// AnswerUpserter persists answer text through the graded-answer guard.
type AnswerUpserter interface {
	Upsert(ctx context.Context, sessionID, questionID uuid.UUID, text string) (*model.Answer, error)
}

// Queue is the Redis list push the async persistence paths need.
type Queue interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// SubmissionService owns the student-facing session lifecycle: starting a
// session, saving answers, and final submission.
type SubmissionService struct {
	sessions SessionRepo
	answers  AnswerUpserter
	rdb      Queue
	pub      ChangeFeed
	log      zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(sessions SessionRepo, answers AnswerUpserter, rdb Queue, pub ChangeFeed, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		sessions: sessions,
		answers:  answers,
		rdb:      rdb,
		pub:      pub,
		log:      log.With().Str("component", "submission_service").Logger(),
	}
}

// StartSession returns the student's session for a test, creating it on first
// entry. Creation publishes an INSERT so dashboards see the student appear;
// re-entry publishes nothing.
func (s *SubmissionService) StartSession(ctx context.Context, testID, studentID uuid.UUID) (*model.Session, error) {
	sess, created, err := s.sessions.GetOrCreate(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if created {
		s.pub.PublishSessionChange(ctx, testID, feed.OpInsert, sess)
		s.log.Info().
			Str("session_id", sess.ID.String()).
			Str("test_id", testID.String()).
			Msg("Session created")
	}
	return sess, nil
}

// GetOwnedSession returns the session only when it belongs to the student.
// Non-owners get a not-found error rather than a forbidden hint.
func (s *SubmissionService) GetOwnedSession(ctx context.Context, sessionID, studentID uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.StudentID != studentID {
		return nil, repository.ErrNotFound
	}
	return sess, nil
}

// SaveAnswer persists one answer synchronously and publishes the change.
// The session must still be live and the answer must not be graded yet.
func (s *SubmissionService) SaveAnswer(ctx context.Context, sessionID, questionID uuid.UUID, text string) (*model.Answer, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.IsLive() {
		return nil, ErrSessionNotLive
	}

	answer, err := s.answers.Upsert(ctx, sessionID, questionID, text)
	if err != nil {
		return nil, err
	}

	s.pub.PublishAnswerChange(ctx, feed.OpUpdate, answer)
	return answer, nil
}

// QueueAnswer enqueues an answer for asynchronous persistence instead of
// writing it inline. The autosave worker drains the queue, upserts, and
// publishes. Used by the high-frequency websocket autosave path.
func (s *SubmissionService) QueueAnswer(ctx context.Context, sessionID, questionID uuid.UUID, text string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Status.IsLive() {
		return ErrSessionNotLive
	}

	payload, err := json.Marshal(model.QueuedAnswer{
		SessionID:  sessionID,
		QuestionID: questionID,
		Answer:     text,
	})
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err()
}

// SubmitTest writes the final answer set and moves the session out of the
// live states. Answers are upserted in parallel; the status only advances
// when every write succeeded, so a failed submission can be retried without
// losing the answers that did land. Calling submit on an already-closed
// session is a no-op returning the current row.
func (s *SubmissionService) SubmitTest(ctx context.Context, sessionID uuid.UUID, req model.SubmitTestRequest) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.IsLive() {
		return sess, nil
	}

	if err := s.persistFinalAnswers(ctx, sessionID, req.Answers); err != nil {
		return nil, err
	}

	status := model.SessionStatusSubmitted
	stamp := true
	if req.Forced {
		// Faculty-forced submission lands in terminated and leaves
		// submitted_at null, so a later allow-continue resumes the attempt.
		status = model.SessionStatusTerminated
		stamp = false
	}

	updated, err := s.sessions.UpdateStatus(ctx, sessionID, status, stamp)
	if err != nil {
		return nil, err
	}

	s.pub.PublishSessionChange(ctx, updated.TestID, feed.OpUpdate, updated)
	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("status", string(status)).
		Int("answers", len(req.Answers)).
		Msg("Test submitted")

	return updated, nil
}

func (s *SubmissionService) persistFinalAnswers(ctx context.Context, sessionID uuid.UUID, answers map[string]string) error {
	if len(answers) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for qid, text := range answers {
		questionID, err := uuid.Parse(qid)
		if err != nil {
			return fmt.Errorf("invalid question id %q: %w", qid, err)
		}

		wg.Add(1)
		go func(questionID uuid.UUID, text string) {
			defer wg.Done()
			answer, err := s.answers.Upsert(ctx, sessionID, questionID, text)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("question %s: %w", questionID, err))
				mu.Unlock()
				return
			}
			s.pub.PublishAnswerChange(ctx, feed.OpUpdate, answer)
		}(questionID, text)
	}
	wg.Wait()

	return errors.Join(errs...)
}
