package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// MonitoringWorker consumes persist_monitoring_queue and appends proctoring
// log entries in batches. The log is append-only; at-least-once delivery can
// duplicate an entry but never corrupt one.
type MonitoringWorker struct {
	logs *repository.MonitoringRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewMonitoringWorker creates a new MonitoringWorker.
func NewMonitoringWorker(logs *repository.MonitoringRepository, rdb *redis.Client, log zerolog.Logger) *MonitoringWorker {
	return &MonitoringWorker{
		logs: logs,
		rdb:  rdb,
		log:  log.With().Str("component", "monitoring_worker").Logger(),
	}
}

func (w *MonitoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]model.MonitoringLog, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistMonitoringQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // Timeout (Queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var entry model.MonitoringLog
		if err := json.Unmarshal([]byte(result[1]), &entry); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		if !entry.EventType.Valid() {
			w.log.Warn().Str("event_type", string(entry.EventType)).Msg("Discarding unknown event type")
			continue
		}

		buffer = append(buffer, entry)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *MonitoringWorker) flushSafe(ctx context.Context, batch []model.MonitoringLog) {
	if err := w.logs.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *MonitoringWorker) fallbackInsert(ctx context.Context, batch []model.MonitoringLog) {
	requeueList := make([]model.MonitoringLog, 0)

	for _, entry := range batch {
		err := w.logs.Insert(ctx, entry.SessionID, entry.EventType, entry.EventData, entry.Timestamp)
		if err != nil {
			w.log.Error().Err(err).
				Str("session_id", entry.SessionID.String()).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, entry)
		}
	}

	// If we have items to requeue (DB was down), push them back to Redis.
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *MonitoringWorker) requeue(ctx context.Context, items []model.MonitoringLog) {
	// Use a pipeline to push everything back quickly.
	pipe := w.rdb.Pipeline()
	for _, entry := range items {
		data, _ := json.Marshal(entry)
		pipe.RPush(ctx, config.WorkerKey.PersistMonitoringQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard.
		time.Sleep(2 * time.Second)
	}
}

func (w *MonitoringWorker) shutdown(buffer []model.MonitoringLog) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
