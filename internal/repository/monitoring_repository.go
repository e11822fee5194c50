package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// MonitoringRepository handles the append-only proctoring log.
type MonitoringRepository struct {
	pool *pgxpool.Pool
}

// NewMonitoringRepository creates a new MonitoringRepository.
func NewMonitoringRepository(pool *pgxpool.Pool) *MonitoringRepository {
	return &MonitoringRepository{pool: pool}
}

// Insert appends one monitoring log entry. Pure append, no read-before-write.
func (r *MonitoringRepository) Insert(ctx context.Context, sessionID uuid.UUID, eventType model.MonitoringEventType, eventData json.RawMessage, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO monitoring_logs (session_id, event_type, event_data, timestamp)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		sessionID, eventType, nullableJSON(eventData), at,
	)
	return err
}

// BulkInsert appends a batch of log entries with COPY.
func (r *MonitoringRepository) BulkInsert(ctx context.Context, logs []model.MonitoringLog) error {
	rows := make([][]any, 0, len(logs))
	for i := range logs {
		rows = append(rows, []any{
			logs[i].SessionID, logs[i].EventType, nullableJSON(logs[i].EventData), logs[i].Timestamp,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"monitoring_logs"},
		[]string{"session_id", "event_type", "event_data", "timestamp"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ListBySession retrieves a session's log entries in chronological order.
func (r *MonitoringRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.MonitoringLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, event_type, event_data, timestamp
		 FROM monitoring_logs
		 WHERE session_id = $1
		 ORDER BY timestamp ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.MonitoringLog
	for rows.Next() {
		var l model.MonitoringLog
		if err := rows.Scan(&l.ID, &l.SessionID, &l.EventType, &l.EventData, &l.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CountsBySession returns the number of logged events per session for one test.
func (r *MonitoringRepository) CountsBySession(ctx context.Context, testID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.session_id, COUNT(*)
		 FROM monitoring_logs m
		 JOIN test_sessions s ON m.session_id = s.id
		 WHERE s.test_id = $1
		 GROUP BY m.session_id`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var sid uuid.UUID
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}

// nullableJSON maps an empty payload to NULL instead of invalid empty jsonb.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
