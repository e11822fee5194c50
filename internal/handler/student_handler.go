package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/response"
	"github.com/proctorhq/proctor-backend/internal/service"
	"github.com/proctorhq/proctor-backend/internal/validator"
)

// StudentHandler handles the student-facing test-taking endpoints. Every
// session route checks ownership: students only ever see their own session.
type StudentHandler struct {
	submissionService *service.SubmissionService
	violationService  *service.ViolationService
	log               zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(submissionService *service.SubmissionService, violationService *service.ViolationService, log zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		submissionService: submissionService,
		violationService:  violationService,
		log:               log.With().Str("component", "student_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/student/tests/:test_id/session
// Returns the caller's session for the test, creating it on first entry.
func (h *StudentHandler) StartSession(c *gin.Context) {
	testID, ok := paramUUID(c, "test_id")
	if !ok {
		return
	}
	studentID, ok := callerID(c)
	if !ok {
		return
	}

	sess, err := h.submissionService.StartSession(c.Request.Context(), testID, studentID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// GetSession godoc
// GET /api/v1/student/sessions/:id
func (h *StudentHandler) GetSession(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// SaveAnswer godoc
// PUT /api/v1/student/sessions/:id/answers
func (h *StudentHandler) SaveAnswer(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	answer, err := h.submissionService.SaveAnswer(c.Request.Context(), sess.ID, questionID, req.Answer)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, answer)
}

// UpdateWarnings godoc
// PATCH /api/v1/student/sessions/:id/warnings
// Applies a partial absolute counter patch reported by the exam client.
func (h *StudentHandler) UpdateWarnings(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var patch model.WarningPatch
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	updated, err := h.violationService.UpdateSessionWarnings(c.Request.Context(), sess.ID, patch)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, updated)
}

// LogEvent godoc
// POST /api/v1/student/sessions/:id/events
// Appends a monitoring event to the session's proctoring log.
func (h *StudentHandler) LogEvent(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.LogEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.violationService.LogMonitoringEvent(c.Request.Context(), sess.ID, req); err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"queued": true})
}

// SubmitTest godoc
// POST /api/v1/student/sessions/:id/submit
func (h *StudentHandler) SubmitTest(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	// Students cannot force-terminate their own session.
	req.Forced = false

	updated, err := h.submissionService.SubmitTest(c.Request.Context(), sess.ID, req)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, updated)
}

func (h *StudentHandler) ownedSession(c *gin.Context) (*model.Session, bool) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return nil, false
	}
	studentID, ok := callerID(c)
	if !ok {
		return nil, false
	}

	sess, err := h.submissionService.GetOwnedSession(c.Request.Context(), sessionID, studentID)
	if err != nil {
		failFromError(c, err, h.log)
		return nil, false
	}
	return sess, true
}
