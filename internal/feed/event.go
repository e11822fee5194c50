package feed

import (
	"encoding/json"
)

// Operation is a change-feed row operation.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Table names the aggregate a change event belongs to.
type Table string

const (
	TableSessions Table = "test_sessions"
	TableAnswers  Table = "answers"
)

// ChangeEvent is one row-level change notification. New carries the full row
// for INSERT and the changed columns for UPDATE; Old carries at least the
// primary key for DELETE. Delivery is at-least-once per channel with no
// ordering across channels, so consumers must fold events idempotently.
type ChangeEvent struct {
	Table Table           `json:"table"`
	Op    Operation       `json:"op"`
	Old   json.RawMessage `json:"old,omitempty"`
	New   json.RawMessage `json:"new,omitempty"`
}

// RowID extracts the primary key carried by the event, preferring New.
// Returns false when neither payload holds a usable id.
func (ev *ChangeEvent) RowID() (string, bool) {
	for _, raw := range [][]byte{ev.New, ev.Old} {
		if len(raw) == 0 {
			continue
		}
		var key struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &key); err == nil && key.ID != "" {
			return key.ID, true
		}
	}
	return "", false
}
