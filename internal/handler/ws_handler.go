package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/middleware"
	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/service"
	ws "github.com/proctorhq/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student exam WebSocket stream: high-frequency answer
// autosave, violation reporting, and final submission over one connection.
type WSHandler struct {
	submissionService *service.SubmissionService
	violationService  *service.ViolationService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(submissionService *service.SubmissionService, violationService *service.ViolationService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		submissionService: submissionService,
		violationService:  violationService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:id/stream
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	studentID, err := claims.UserID()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Ownership check before the upgrade: only the session's student streams.
	if _, err := h.submissionService.GetOwnedSession(c.Request.Context(), sessionID, studentID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		raw, err := ws.ReadRaw(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, sessionID, raw)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, sessionID, raw)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, sessionID, raw)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

// handleAutosave queues a single answer for asynchronous persistence.
func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, raw []byte) {
	var msg ws.AutosaveRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed autosave payload")
		return
	}
	if msg.QuestionID == "" || msg.Answer == "" {
		ws.WriteError(conn, "question_id and answer are required")
		return
	}
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	if err := h.submissionService.QueueAnswer(context.Background(), sessionID, questionID, msg.Answer); err != nil {
		wsLog.Error().Err(err).Msg("Autosave queue error")
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "queued"})
}

// handleViolation records a proctoring violation and reports the updated
// counters back, including whether this one terminated the session.
func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, raw []byte) {
	var msg ws.ViolationRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed violation payload")
		return
	}

	sess, terminated, err := h.violationService.RecordViolation(context.Background(), sessionID, model.LogEventRequest{
		EventType: msg.EventType,
		EventData: msg.EventData,
	})
	if err != nil {
		wsLog.Warn().Err(err).Str("event_type", string(msg.EventType)).Msg("Violation rejected")
		ws.WriteError(conn, err.Error())
		return
	}

	event := ws.EventSuccess
	if terminated {
		event = ws.EventTerminated
		wsLog.Warn().Int("total_warnings", sess.TotalWarnings).Msg("Session terminated over WebSocket")
	}
	ws.WriteTyped(conn, ws.ViolationResponse{
		Event:         event,
		TotalWarnings: sess.TotalWarnings,
		Terminated:    terminated,
	})
}

// handleSubmit runs the final submission and reports the resulting status.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, raw []byte) {
	var msg ws.SubmitRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed submit payload")
		return
	}

	sess, err := h.submissionService.SubmitTest(context.Background(), sessionID, model.SubmitTestRequest{Answers: msg.Answers})
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit error")
		ws.WriteError(conn, "submit failed")
		return
	}

	wsLog.Info().Int("answers", len(msg.Answers)).Msg("Test submitted over WebSocket")
	ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Status: sess.Status})
}
