package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
)

// ProfileLookup resolves a student's identity when a session INSERT arrives
// without the denormalized name/email columns.
type ProfileLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// Outcome reports what an Apply call did. A freshly inserted session means
// its existing answers must be backfilled from the durable store, since
// answers and sessions travel on separate channels with no cross-channel
// ordering.
type Outcome struct {
	// InsertedSession is set when a session id not seen before was added.
	InsertedSession *uuid.UUID
}

// Reconciler folds change-feed events into a session store and an answer
// store. Every operation is idempotent: replaying an event yields the same
// store state as applying it once. Malformed events are logged and skipped;
// nothing terminates the stream. Feed events overwrite local state
// unconditionally; provisional local values are never merged against a
// pending event for the same id.
type Reconciler struct {
	sessions *SessionStore
	answers  *AnswerStore
	profiles ProfileLookup
	log      zerolog.Logger
}

// NewReconciler creates a Reconciler over the given stores. profiles may be
// nil when session events always carry denormalized identity.
func NewReconciler(sessions *SessionStore, answers *AnswerStore, profiles ProfileLookup, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		sessions: sessions,
		answers:  answers,
		profiles: profiles,
		log:      log.With().Str("component", "reconciler").Logger(),
	}
}

// Apply folds one event into the stores.
func (r *Reconciler) Apply(ctx context.Context, ev feed.ChangeEvent) Outcome {
	switch ev.Table {
	case feed.TableSessions:
		return r.applySession(ctx, ev)
	case feed.TableAnswers:
		r.applyAnswer(ev)
	default:
		r.log.Warn().Str("table", string(ev.Table)).Msg("Skipping event for unknown table")
	}
	return Outcome{}
}

func (r *Reconciler) applySession(ctx context.Context, ev feed.ChangeEvent) Outcome {
	switch ev.Op {
	case feed.OpDelete:
		if id, ok := parseRowID(ev); ok {
			r.sessions.Remove(id)
		} else {
			r.log.Warn().Msg("Skipping session DELETE without id")
		}
		return Outcome{}

	case feed.OpInsert, feed.OpUpdate:
		id, ok := parseRowID(ev)
		if !ok {
			r.log.Warn().Str("op", string(ev.Op)).Msg("Skipping session event without id")
			return Outcome{}
		}

		existing := r.sessions.Get(id)
		if existing == nil {
			// Unseen id: decode as a full row. An UPDATE that beat its
			// INSERT here lands as insert-with-partial-data and converges
			// once the INSERT replays.
			sess := &model.Session{}
			if err := json.Unmarshal(ev.New, sess); err != nil {
				r.log.Warn().Err(err).Str("id", id.String()).Msg("Skipping undecodable session event")
				return Outcome{}
			}
			sess.ID = id
			sess.Status = model.NormalizeStatus(sess.Status)
			r.attachIdentity(ctx, sess)
			r.sessions.Upsert(sess)
			return Outcome{InsertedSession: &id}
		}

		// Known id: merge the changed columns into the existing record.
		// A replayed INSERT carries the full row and merges to the same state.
		merged, err := mergeRecord(existing, ev.New)
		if err != nil {
			r.log.Warn().Err(err).Str("id", id.String()).Msg("Skipping unmergeable session event")
			return Outcome{}
		}
		merged.Status = model.NormalizeStatus(merged.Status)
		r.sessions.Upsert(merged)
		return Outcome{}

	default:
		r.log.Warn().Str("op", string(ev.Op)).Msg("Skipping session event with unknown op")
		return Outcome{}
	}
}

func (r *Reconciler) applyAnswer(ev feed.ChangeEvent) {
	switch ev.Op {
	case feed.OpDelete:
		if id, ok := parseRowID(ev); ok {
			r.answers.Remove(id)
		} else {
			r.log.Warn().Msg("Skipping answer DELETE without id")
		}

	case feed.OpInsert, feed.OpUpdate:
		id, ok := parseRowID(ev)
		if !ok {
			r.log.Warn().Str("op", string(ev.Op)).Msg("Skipping answer event without id")
			return
		}

		existing := r.answers.Get(id)
		if existing == nil {
			ans := &model.Answer{}
			if err := json.Unmarshal(ev.New, ans); err != nil {
				r.log.Warn().Err(err).Str("id", id.String()).Msg("Skipping undecodable answer event")
				return
			}
			ans.ID = id
			// The answers channel is shared across tests; only fold in
			// answers whose owning session is in scope.
			if !r.sessions.Has(ans.SessionID) {
				return
			}
			r.answers.Upsert(ans)
			return
		}

		merged, err := mergeRecord(existing, ev.New)
		if err != nil {
			r.log.Warn().Err(err).Str("id", id.String()).Msg("Skipping unmergeable answer event")
			return
		}
		r.answers.Upsert(merged)

	default:
		r.log.Warn().Str("op", string(ev.Op)).Msg("Skipping answer event with unknown op")
	}
}

// attachIdentity fills in denormalized student identity on a session that
// arrived without it. Lookup failure degrades to an empty identity; the
// event itself is never dropped.
func (r *Reconciler) attachIdentity(ctx context.Context, sess *model.Session) {
	if sess.StudentName != "" || r.profiles == nil || sess.StudentID == uuid.Nil {
		return
	}
	profile, err := r.profiles.GetByID(ctx, sess.StudentID)
	if err != nil {
		r.log.Warn().Err(err).Str("student_id", sess.StudentID.String()).Msg("Profile lookup failed")
		return
	}
	sess.StudentName = profile.Name
	sess.StudentEmail = profile.Email
}

// parseRowID pulls the row's primary key out of the event payloads.
func parseRowID(ev feed.ChangeEvent) (uuid.UUID, bool) {
	raw, ok := ev.RowID()
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// mergeRecord overlays the changed columns in partial onto existing and
// returns a fresh record. Field-level last-writer-wins: every column present
// in the event replaces the local value unconditionally.
func mergeRecord[T any](existing *T, partial json.RawMessage) (*T, error) {
	base, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}

	var changed map[string]json.RawMessage
	if err := json.Unmarshal(partial, &changed); err != nil {
		return nil, err
	}
	for k, v := range changed {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	out := new(T)
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, err
	}
	return out, nil
}
