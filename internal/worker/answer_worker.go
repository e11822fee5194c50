package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/repository"
)

// AnswerWorker consumes persist_answers_queue and UPSERTs answers to
// PostgreSQL through the graded-answer guard, publishing each landed write
// onto the change feed.
type AnswerWorker struct {
	answers *repository.AnswerRepository
	rdb     *redis.Client
	pub     *feed.Publisher
	log     zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(answers *repository.AnswerRepository, rdb *redis.Client, pub *feed.Publisher, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		answers: answers,
		rdb:     rdb,
		pub:     pub,
		log:     log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}
	w.persist(ctx, result[1], true)
}

func (w *AnswerWorker) persist(ctx context.Context, raw string, requeueOnFailure bool) {
	var payload model.QueuedAnswer
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Malformed JSON cannot be retried. Log and discard.
		w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed payload")
		return
	}

	answer, err := w.answers.Upsert(ctx, payload.SessionID, payload.QuestionID, payload.Answer)
	if err != nil {
		if errors.Is(err, repository.ErrAnswerGraded) {
			// A grade landed between queue and persist. The write is void,
			// not retryable.
			w.log.Warn().
				Str("session_id", payload.SessionID.String()).
				Str("question_id", payload.QuestionID.String()).
				Msg("Dropping autosave for a graded answer")
			return
		}

		w.log.Error().Err(err).
			Str("session_id", payload.SessionID.String()).
			Msg("Persist error, retrying in 5s")
		if requeueOnFailure {
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			time.Sleep(5 * time.Second)
		}
		return
	}

	w.pub.PublishAnswerChange(ctx, feed.OpUpdate, answer)
}

// drain empties the queue without blocking, persisting what it can.
func (w *AnswerWorker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for {
		result, err := w.rdb.LPop(drainCtx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				w.log.Error().Err(err).Msg("Drain LPop error")
			}
			return
		}
		w.persist(drainCtx, result, false)
	}
}
