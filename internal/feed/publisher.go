package feed

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
)

// Publisher emits change events onto the Redis Pub/Sub feed after each
// authoritative write. Session events are scoped per test; answer events
// share one channel and are scoped by consumers.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		rdb: rdb,
		log: log.With().Str("component", "feed_publisher").Logger(),
	}
}

// PublishSessionChange publishes a session change on the per-test channel.
// Publish failures are logged, never propagated: the durable write already
// succeeded and dashboards recover via their periodic refresh.
func (p *Publisher) PublishSessionChange(ctx context.Context, testID uuid.UUID, op Operation, row any) {
	p.publish(ctx, config.CacheKey.SessionFeedChannel(testID.String()), TableSessions, op, row)
}

// PublishAnswerChange publishes an answer change on the shared answers channel.
func (p *Publisher) PublishAnswerChange(ctx context.Context, op Operation, row any) {
	p.publish(ctx, config.CacheKey.AnswerFeedChannel(), TableAnswers, op, row)
}

func (p *Publisher) publish(ctx context.Context, channel string, table Table, op Operation, row any) {
	rowJSON, err := json.Marshal(row)
	if err != nil {
		p.log.Error().Err(err).Str("table", string(table)).Msg("Marshal feed row failed")
		return
	}

	ev := ChangeEvent{Table: table, Op: op}
	if op == OpDelete {
		ev.Old = rowJSON
	} else {
		ev.New = rowJSON
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Marshal feed event failed")
		return
	}

	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Error().Err(err).Str("channel", channel).Msg("Publish feed event failed")
	}
}
