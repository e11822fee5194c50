package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// DashboardSessionLister loads the durable session snapshot for one test.
type DashboardSessionLister interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Session, error)
}

// DashboardAnswerLister loads answers scoped to a session set.
type DashboardAnswerLister interface {
	ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) ([]model.Answer, error)
}

// MonitoringLister loads a session's proctoring log and per-test counts.
type MonitoringLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.MonitoringLog, error)
	CountsBySession(ctx context.Context, testID uuid.UUID) (map[uuid.UUID]int64, error)
}

// DashboardService serves the one-shot durable reads behind the faculty
// dashboard: the initial state fetch and the per-session drill-downs.
type DashboardService struct {
	sessions   DashboardSessionLister
	answers    DashboardAnswerLister
	monitoring MonitoringLister
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(sessions DashboardSessionLister, answers DashboardAnswerLister, monitoring MonitoringLister) *DashboardService {
	return &DashboardService{sessions: sessions, answers: answers, monitoring: monitoring}
}

// FetchInitialState loads the full durable snapshot for one test: all its
// sessions plus every answer belonging to those sessions. Callers subscribe
// to the change feed before calling this, so changes racing the snapshot are
// replayed on top of it rather than lost.
func (s *DashboardService) FetchInitialState(ctx context.Context, testID uuid.UUID) ([]model.Session, []model.Answer, error) {
	sessions, err := s.sessions.ListByTest(ctx, testID)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}

	answers, err := s.answers.ListBySessions(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return sessions, answers, nil
}

// SessionAnswers loads one session's answers from the durable store.
func (s *DashboardService) SessionAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	return s.answers.ListBySessions(ctx, []uuid.UUID{sessionID})
}

// SessionMonitoringLogs loads one session's proctoring log in event order.
func (s *DashboardService) SessionMonitoringLogs(ctx context.Context, sessionID uuid.UUID) ([]model.MonitoringLog, error) {
	return s.monitoring.ListBySession(ctx, sessionID)
}

// MonitoringCounts returns how many proctoring events each of a test's
// sessions has logged.
func (s *DashboardService) MonitoringCounts(ctx context.Context, testID uuid.UUID) (map[uuid.UUID]int64, error) {
	return s.monitoring.CountsBySession(ctx, testID)
}
