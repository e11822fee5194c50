package feed

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
)

// Subscriber attaches consumers to the change feed.
type Subscriber struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(rdb *redis.Client, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		rdb: rdb,
		log: log.With().Str("component", "feed_subscriber").Logger(),
	}
}

// SubscribeTest subscribes to one test's session channel plus the shared
// answers channel. Decoded events arrive on the returned channel in
// per-channel publish order; there is no ordering across the two channels.
// Malformed payloads are logged and skipped; they never terminate the
// stream. The channel closes when ctx is cancelled or cancel is called.
func (s *Subscriber) SubscribeTest(ctx context.Context, testID uuid.UUID) (<-chan ChangeEvent, func()) {
	pubsub := s.rdb.Subscribe(ctx,
		config.CacheKey.SessionFeedChannel(testID.String()),
		config.CacheKey.AnswerFeedChannel(),
	)

	events := make(chan ChangeEvent, 64)

	go func() {
		defer close(events)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Skipping malformed feed event")
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return events, cancel
}
