package websocket

import (
	"encoding/json"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave  Action = "autosave"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
	ActionViolation Action = "violation"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest is sent by the client to save a single answer.
type AutosaveRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// ViolationRequest is sent by the client to report a proctoring violation.
type ViolationRequest struct {
	Action    Action                    `json:"action"`
	EventType model.MonitoringEventType `json:"event_type"`
	EventData json.RawMessage           `json:"event_data"`
}

// SubmitRequest is sent by the client to finish the test.
type SubmitRequest struct {
	Action  Action            `json:"action"`
	Answers map[string]string `json:"answers"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSuccess    Event = "success"
	EventSubmitted  Event = "submitted"
	EventTerminated Event = "terminated"
	EventPong       Event = "pong"
)

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// ViolationResponse carries the updated warning counters back to the client.
// Terminated is set when this violation crossed the warning threshold.
type ViolationResponse struct {
	Event         Event `json:"event"`
	TotalWarnings int   `json:"total_warnings"`
	Terminated    bool  `json:"terminated"`
}

type SubmittedResponse struct {
	Event  Event               `json:"event"`
	Status model.SessionStatus `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
