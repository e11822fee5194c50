package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
)

type fakeProfiles struct {
	profiles map[uuid.UUID]*model.Profile
	calls    int
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	f.calls++
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, errors.New("profile not found")
}

func newTestReconciler(t *testing.T, profiles ProfileLookup) (*Reconciler, *SessionStore, *AnswerStore) {
	t.Helper()
	sessions := NewSessionStore()
	answers := NewAnswerStore()
	return NewReconciler(sessions, answers, profiles, zerolog.Nop()), sessions, answers
}

func sessionInsertEvent(t *testing.T, sess *model.Session) feed.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatal(err)
	}
	return feed.ChangeEvent{Table: feed.TableSessions, Op: feed.OpInsert, New: raw}
}

func answerInsertEvent(t *testing.T, ans *model.Answer) feed.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(ans)
	if err != nil {
		t.Fatal(err)
	}
	return feed.ChangeEvent{Table: feed.TableAnswers, Op: feed.OpInsert, New: raw}
}

func TestReconcilerInsertIdempotent(t *testing.T) {
	r, sessions, _ := newTestReconciler(t, nil)
	sess := &model.Session{
		ID:          uuid.New(),
		TestID:      uuid.New(),
		StudentID:   uuid.New(),
		StudentName: "Ada Lovelace",
		Status:      model.SessionStatusInProgress,
	}
	ev := sessionInsertEvent(t, sess)

	out := r.Apply(context.Background(), ev)
	if out.InsertedSession == nil || *out.InsertedSession != sess.ID {
		t.Fatal("first apply should report an inserted session")
	}
	first := sessions.All()

	out = r.Apply(context.Background(), ev)
	if out.InsertedSession != nil {
		t.Error("replayed insert should not report a new session")
	}
	second := sessions.All()

	if !reflect.DeepEqual(first, second) {
		t.Error("replaying the same INSERT changed store state")
	}
	if sessions.Len() != 1 {
		t.Errorf("expected 1 session, got %d", sessions.Len())
	}
}

func TestReconcilerUpdateMergesFields(t *testing.T) {
	r, sessions, _ := newTestReconciler(t, nil)
	sess := &model.Session{
		ID:            uuid.New(),
		TestID:        uuid.New(),
		StudentID:     uuid.New(),
		StudentName:   "Ada Lovelace",
		Status:        model.SessionStatusInProgress,
		TotalWarnings: 2,
	}
	r.Apply(context.Background(), sessionInsertEvent(t, sess))

	partial := fmt.Sprintf(`{"id":%q,"total_warnings":5,"status":"terminated"}`, sess.ID)
	ev := feed.ChangeEvent{Table: feed.TableSessions, Op: feed.OpUpdate, New: json.RawMessage(partial)}
	r.Apply(context.Background(), ev)
	r.Apply(context.Background(), ev) // replay

	got := sessions.Get(sess.ID)
	if got.TotalWarnings != 5 {
		t.Errorf("TotalWarnings = %d, want 5", got.TotalWarnings)
	}
	if got.Status != model.SessionStatusTerminated {
		t.Errorf("Status = %s, want terminated", got.Status)
	}
	if got.StudentName != "Ada Lovelace" {
		t.Error("merge dropped fields absent from the event")
	}
}

func TestReconcilerUpdateBeforeInsertConverges(t *testing.T) {
	id := uuid.New()
	testID := uuid.New()
	studentID := uuid.New()

	full := &model.Session{
		ID:        id,
		TestID:    testID,
		StudentID: studentID,
		Status:    model.SessionStatusInProgress,
	}
	insert := feed.ChangeEvent{Table: feed.TableSessions, Op: feed.OpInsert}
	raw, _ := json.Marshal(full)
	insert.New = raw

	update := feed.ChangeEvent{
		Table: feed.TableSessions,
		Op:    feed.OpUpdate,
		New:   json.RawMessage(fmt.Sprintf(`{"id":%q,"total_warnings":3}`, id)),
	}

	// In order.
	rA, storeA, _ := newTestReconciler(t, nil)
	rA.Apply(context.Background(), insert)
	rA.Apply(context.Background(), update)

	// Update first: lands as insert-with-partial-data, then the insert replays.
	rB, storeB, _ := newTestReconciler(t, nil)
	rB.Apply(context.Background(), update)
	if storeB.Len() != 1 {
		t.Fatal("orphan UPDATE should insert with partial data, not crash or drop")
	}
	rB.Apply(context.Background(), insert)
	rB.Apply(context.Background(), update)

	a := storeA.Get(id)
	b := storeB.Get(id)
	if a.TotalWarnings != b.TotalWarnings || a.Status != b.Status || a.TestID != b.TestID {
		t.Errorf("stores diverged: in-order %+v, out-of-order %+v", a, b)
	}
}

func TestReconcilerDelete(t *testing.T) {
	r, sessions, _ := newTestReconciler(t, nil)
	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	r.Apply(context.Background(), sessionInsertEvent(t, sess))

	del := feed.ChangeEvent{
		Table: feed.TableSessions,
		Op:    feed.OpDelete,
		Old:   json.RawMessage(fmt.Sprintf(`{"id":%q}`, sess.ID)),
	}
	r.Apply(context.Background(), del)
	r.Apply(context.Background(), del) // replay is a no-op

	if sessions.Len() != 0 {
		t.Errorf("expected empty store after delete, got %d", sessions.Len())
	}
}

func TestReconcilerMalformedEventSkipped(t *testing.T) {
	r, sessions, answers := newTestReconciler(t, nil)

	malformed := []feed.ChangeEvent{
		{Table: feed.TableSessions, Op: feed.OpInsert, New: json.RawMessage(`{"no_id":true}`)},
		{Table: feed.TableSessions, Op: feed.OpInsert, New: json.RawMessage(`not json`)},
		{Table: feed.TableAnswers, Op: feed.OpUpdate, New: json.RawMessage(`{}`)},
		{Table: "bogus_table", Op: feed.OpInsert, New: json.RawMessage(`{"id":"x"}`)},
		{Table: feed.TableSessions, Op: "TRUNCATE", New: json.RawMessage(`{"id":"x"}`)},
	}
	for _, ev := range malformed {
		r.Apply(context.Background(), ev)
	}

	if sessions.Len() != 0 || answers.Len() != 0 {
		t.Error("malformed events must be skipped without mutating the stores")
	}
}

func TestReconcilerSessionInsertAttachesIdentity(t *testing.T) {
	studentID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*model.Profile{
		studentID: {ID: studentID, Name: "Grace Hopper", Email: "grace@example.edu"},
	}}
	r, sessions, _ := newTestReconciler(t, profiles)

	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: studentID, Status: model.SessionStatusInProgress}
	r.Apply(context.Background(), sessionInsertEvent(t, sess))

	got := sessions.Get(sess.ID)
	if got.StudentName != "Grace Hopper" || got.StudentEmail != "grace@example.edu" {
		t.Errorf("identity not attached: %+v", got)
	}
	if profiles.calls != 1 {
		t.Errorf("expected 1 profile lookup, got %d", profiles.calls)
	}
}

func TestReconcilerAnswerScopedBySession(t *testing.T) {
	r, _, answers := newTestReconciler(t, nil)

	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	r.Apply(context.Background(), sessionInsertEvent(t, sess))

	inScope := &model.Answer{ID: uuid.New(), SessionID: sess.ID, QuestionID: uuid.New()}
	outOfScope := &model.Answer{ID: uuid.New(), SessionID: uuid.New(), QuestionID: uuid.New()}

	r.Apply(context.Background(), answerInsertEvent(t, inScope))
	r.Apply(context.Background(), answerInsertEvent(t, outOfScope))

	if answers.Len() != 1 {
		t.Fatalf("expected 1 in-scope answer, got %d", answers.Len())
	}
	if answers.Get(inScope.ID) == nil {
		t.Error("in-scope answer missing")
	}
}

func TestReconcilerAnswerGradeUpdate(t *testing.T) {
	r, _, answers := newTestReconciler(t, nil)

	sess := &model.Session{ID: uuid.New(), TestID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	r.Apply(context.Background(), sessionInsertEvent(t, sess))

	text := "42"
	ans := &model.Answer{ID: uuid.New(), SessionID: sess.ID, QuestionID: uuid.New(), StudentAnswer: &text}
	r.Apply(context.Background(), answerInsertEvent(t, ans))

	grader := uuid.New()
	partial := fmt.Sprintf(`{"id":%q,"marks_awarded":5,"is_correct":true,"graded_by":%q}`, ans.ID, grader)
	ev := feed.ChangeEvent{Table: feed.TableAnswers, Op: feed.OpUpdate, New: json.RawMessage(partial)}
	r.Apply(context.Background(), ev)
	r.Apply(context.Background(), ev) // replay

	got := answers.Get(ans.ID)
	if !got.Graded() || *got.GradedBy != grader {
		t.Fatalf("grading update not applied: %+v", got)
	}
	if got.MarksAwarded == nil || *got.MarksAwarded != 5 {
		t.Error("marks not merged")
	}
	if got.StudentAnswer == nil || *got.StudentAnswer != "42" {
		t.Error("merge dropped the student answer text")
	}
}
