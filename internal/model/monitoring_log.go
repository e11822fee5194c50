package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MonitoringEventType enumerates the violation events a session can report.
type MonitoringEventType string

const (
	EventTabSwitch      MonitoringEventType = "tab_switch"
	EventFullscreenExit MonitoringEventType = "fullscreen_exit"
	EventFaceAway       MonitoringEventType = "face_away"
	EventMultipleFaces  MonitoringEventType = "multiple_faces"
	EventNoFace         MonitoringEventType = "no_face"
	EventWarning        MonitoringEventType = "warning"
)

// Valid reports whether t is a known monitoring event type.
func (t MonitoringEventType) Valid() bool {
	switch t {
	case EventTabSwitch, EventFullscreenExit, EventFaceAway, EventMultipleFaces, EventNoFace, EventWarning:
		return true
	}
	return false
}

// CountsTowardWarnings reports whether the event increments a per-session
// violation counter. The camera events come from the head-pose proctoring
// sidecar and are logged but not counted individually.
func (t MonitoringEventType) CountsTowardWarnings() bool {
	return t == EventTabSwitch || t == EventFullscreenExit
}

// MonitoringLog is one append-only proctoring log entry. Rows are never
// mutated or deleted.
type MonitoringLog struct {
	ID        uuid.UUID           `json:"id"`
	SessionID uuid.UUID           `json:"session_id"`
	EventType MonitoringEventType `json:"event_type"`
	EventData json.RawMessage     `json:"event_data,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// LogEventRequest is the payload for appending a monitoring event.
type LogEventRequest struct {
	EventType MonitoringEventType `json:"event_type" binding:"required"`
	EventData json.RawMessage     `json:"event_data"`
}
