package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/repository"
)

// fakeSessions is an in-memory SessionRepo / ViolationSessionRepo.
type fakeSessions struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.Session
	byKey   map[string]uuid.UUID
	creates int
}

func newFakeSessions(sessions ...*model.Session) *fakeSessions {
	f := &fakeSessions{
		byID:  make(map[uuid.UUID]*model.Session),
		byKey: make(map[string]uuid.UUID),
	}
	for _, s := range sessions {
		f.byID[s.ID] = s
		f.byKey[s.TestID.String()+"/"+s.StudentID.String()] = s.ID
	}
	return f
}

func (f *fakeSessions) GetOrCreate(_ context.Context, testID, studentID uuid.UUID) (*model.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := testID.String() + "/" + studentID.String()
	if id, ok := f.byKey[key]; ok {
		return copySession(f.byID[id]), false, nil
	}
	now := time.Now()
	s := &model.Session{
		ID:        uuid.New(),
		TestID:    testID,
		StudentID: studentID,
		Status:    model.SessionStatusInProgress,
		StartedAt: &now,
	}
	f.byID[s.ID] = s
	f.byKey[key] = s.ID
	f.creates++
	return copySession(s), true, nil
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

func (f *fakeSessions) UpdateStatus(_ context.Context, id uuid.UUID, status model.SessionStatus, stampSubmittedAt bool) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.Status = status
	if stampSubmittedAt && s.SubmittedAt == nil {
		now := time.Now()
		s.SubmittedAt = &now
	}
	return copySession(s), nil
}

func (f *fakeSessions) UpdateWarnings(_ context.Context, id uuid.UUID, patch model.WarningPatch) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.TotalWarnings != nil && *patch.TotalWarnings > s.TotalWarnings {
		s.TotalWarnings = *patch.TotalWarnings
	}
	if patch.TabSwitchCount != nil && *patch.TabSwitchCount > s.TabSwitchCount {
		s.TabSwitchCount = *patch.TabSwitchCount
	}
	if patch.FullscreenExitCount != nil && *patch.FullscreenExitCount > s.FullscreenExitCount {
		s.FullscreenExitCount = *patch.FullscreenExitCount
	}
	return copySession(s), nil
}

func (f *fakeSessions) IncrementViolation(_ context.Context, id uuid.UUID, eventType model.MonitoringEventType) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.TotalWarnings++
	switch eventType {
	case model.EventTabSwitch:
		s.TabSwitchCount++
	case model.EventFullscreenExit:
		s.FullscreenExitCount++
	}
	return copySession(s), nil
}

func copySession(s *model.Session) *model.Session {
	c := *s
	return &c
}

// fakeAnswers is an in-memory GradedAnswerRepo / AnswerUpserter.
type fakeAnswers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.Answer
	byKey   map[string]uuid.UUID
	failQID uuid.UUID // Upsert fails for this question id when set.
}

func newFakeAnswers(answers ...*model.Answer) *fakeAnswers {
	f := &fakeAnswers{
		byID:  make(map[uuid.UUID]*model.Answer),
		byKey: make(map[string]uuid.UUID),
	}
	for _, a := range answers {
		f.byID[a.ID] = a
		f.byKey[a.SessionID.String()+"/"+a.QuestionID.String()] = a.ID
	}
	return f
}

func (f *fakeAnswers) GetByID(_ context.Context, id uuid.UUID) (*model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAnswers) Grade(_ context.Context, id uuid.UUID, marks float64, isCorrect bool, graderID uuid.UUID) (*model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now()
	a.MarksAwarded = &marks
	a.IsCorrect = &isCorrect
	a.GradedBy = &graderID
	a.GradedAt = &now
	c := *a
	return &c, nil
}

func (f *fakeAnswers) Upsert(_ context.Context, sessionID, questionID uuid.UUID, text string) (*model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if questionID == f.failQID {
		return nil, context.DeadlineExceeded
	}
	key := sessionID.String() + "/" + questionID.String()
	if id, ok := f.byKey[key]; ok {
		a := f.byID[id]
		if a.Graded() {
			return nil, repository.ErrAnswerGraded
		}
		a.StudentAnswer = &text
		c := *a
		return &c, nil
	}
	a := &model.Answer{
		ID:            uuid.New(),
		SessionID:     sessionID,
		QuestionID:    questionID,
		StudentAnswer: &text,
	}
	f.byID[a.ID] = a
	f.byKey[key] = a.ID
	c := *a
	return &c, nil
}

func answerFixture(sessionID, questionID uuid.UUID, text string) *model.Answer {
	return &model.Answer{
		ID:            uuid.New(),
		SessionID:     sessionID,
		QuestionID:    questionID,
		StudentAnswer: &text,
	}
}

// fakeQuestions is a fixed MaxMarksLookup.
type fakeQuestions map[uuid.UUID]float64

func (f fakeQuestions) GetMaxMarks(_ context.Context, questionID uuid.UUID) (float64, error) {
	max, ok := f[questionID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return max, nil
}

// fakeFeed records published change events.
type fakeFeed struct {
	mu       sync.Mutex
	sessions int
	answers  int
}

func (f *fakeFeed) PublishSessionChange(_ context.Context, _ uuid.UUID, _ feed.Operation, _ any) {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()
}

func (f *fakeFeed) PublishAnswerChange(_ context.Context, _ feed.Operation, _ any) {
	f.mu.Lock()
	f.answers++
	f.mu.Unlock()
}

// fakeQueue records RPush payloads.
type fakeQueue struct {
	mu       sync.Mutex
	payloads map[string][]string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{payloads: make(map[string][]string)}
}

func (f *fakeQueue) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.payloads[key] = append(f.payloads[key], string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.payloads[key])), nil)
}

func (f *fakeQueue) len(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[key])
}
