package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
)

// Violation errors.
var (
	ErrUnknownEventType     = errors.New("unknown monitoring event type")
	ErrSessionNotTerminated = errors.New("session is not terminated")
)

// ViolationSessionRepo is the session access the proctoring workflows need.
type ViolationSessionRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus, stampSubmittedAt bool) (*model.Session, error)
	UpdateWarnings(ctx context.Context, id uuid.UUID, patch model.WarningPatch) (*model.Session, error)
	IncrementViolation(ctx context.Context, id uuid.UUID, eventType model.MonitoringEventType) (*model.Session, error)
}

// ViolationService owns proctoring: warning counters, the monitoring log,
// termination, and reinstatement.
type ViolationService struct {
	sessions  ViolationSessionRepo
	rdb       Queue
	pub       ChangeFeed
	threshold int
	log       zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(sessions ViolationSessionRepo, rdb Queue, pub ChangeFeed, threshold int, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		sessions:  sessions,
		rdb:       rdb,
		pub:       pub,
		threshold: threshold,
		log:       log.With().Str("component", "violation_service").Logger(),
	}
}

// UpdateSessionWarnings applies a client-reported absolute counter patch to a
// live session. Counters only move forward; a stale retry can never lower a
// stored count.
func (s *ViolationService) UpdateSessionWarnings(ctx context.Context, sessionID uuid.UUID, patch model.WarningPatch) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.IsLive() {
		return nil, ErrSessionNotLive
	}

	updated, err := s.sessions.UpdateWarnings(ctx, sessionID, patch)
	if err != nil {
		return nil, err
	}

	s.pub.PublishSessionChange(ctx, updated.TestID, feed.OpUpdate, updated)
	return updated, nil
}

// LogMonitoringEvent appends a proctoring event to the persistence queue.
// The monitoring worker drains the queue into the append-only log table.
func (s *ViolationService) LogMonitoringEvent(ctx context.Context, sessionID uuid.UUID, req model.LogEventRequest) error {
	if !req.EventType.Valid() {
		return ErrUnknownEventType
	}

	payload, err := json.Marshal(model.MonitoringLog{
		SessionID: sessionID,
		EventType: req.EventType,
		EventData: req.EventData,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistMonitoringQueue, payload).Err()
}

// RecordViolation logs a violation event against a live session and bumps the
// matching warning counters. When the total reaches the configured threshold
// the session is terminated in the same call. The returned flag reports
// whether this violation terminated the session.
func (s *ViolationService) RecordViolation(ctx context.Context, sessionID uuid.UUID, req model.LogEventRequest) (*model.Session, bool, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if !sess.Status.IsLive() {
		return nil, false, ErrSessionNotLive
	}

	if err := s.LogMonitoringEvent(ctx, sessionID, req); err != nil {
		return nil, false, err
	}

	if !req.EventType.CountsTowardWarnings() {
		return sess, false, nil
	}

	updated, err := s.sessions.IncrementViolation(ctx, sessionID, req.EventType)
	if err != nil {
		return nil, false, err
	}

	terminated := false
	if s.threshold > 0 && updated.TotalWarnings >= s.threshold {
		updated, err = s.sessions.UpdateStatus(ctx, sessionID, model.SessionStatusTerminated, false)
		if err != nil {
			return nil, false, err
		}
		terminated = true
		s.log.Warn().
			Str("session_id", sessionID.String()).
			Int("total_warnings", updated.TotalWarnings).
			Msg("Session auto-terminated at warning threshold")
	}

	s.pub.PublishSessionChange(ctx, updated.TestID, feed.OpUpdate, updated)
	return updated, terminated, nil
}

// TerminateStudent force-terminates a session on faculty action. Terminating
// an already-closed session is a no-op returning the current row.
func (s *ViolationService) TerminateStudent(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionStatusTerminated {
		return sess, nil
	}

	updated, err := s.sessions.UpdateStatus(ctx, sessionID, model.SessionStatusTerminated, false)
	if err != nil {
		return nil, err
	}

	s.pub.PublishSessionChange(ctx, updated.TestID, feed.OpUpdate, updated)
	s.log.Info().Str("session_id", sessionID.String()).Msg("Session terminated by faculty")
	return updated, nil
}

// AllowContinue reinstates a terminated session. A session that had already
// submitted before termination returns to submitted; otherwise it resumes
// in_progress.
func (s *ViolationService) AllowContinue(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if model.NormalizeStatus(sess.Status) != model.SessionStatusTerminated {
		return nil, ErrSessionNotTerminated
	}

	restored := model.SessionStatusInProgress
	if sess.SubmittedAt != nil {
		restored = model.SessionStatusSubmitted
	}

	updated, err := s.sessions.UpdateStatus(ctx, sessionID, restored, false)
	if err != nil {
		return nil, err
	}

	s.pub.PublishSessionChange(ctx, updated.TestID, feed.OpUpdate, updated)
	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("status", string(restored)).
		Msg("Session reinstated")
	return updated, nil
}
