package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/model"
	"github.com/proctorhq/proctor-backend/internal/response"
	"github.com/proctorhq/proctor-backend/internal/service"
	"github.com/proctorhq/proctor-backend/internal/validator"
)

// FacultyHandler handles the faculty proctoring and grading endpoints.
type FacultyHandler struct {
	gradingService    *service.GradingService
	violationService  *service.ViolationService
	submissionService *service.SubmissionService
	dashboardService  *service.DashboardService
	authService       *service.AuthService
	log               zerolog.Logger
}

// NewFacultyHandler creates a new FacultyHandler.
func NewFacultyHandler(
	gradingService *service.GradingService,
	violationService *service.ViolationService,
	submissionService *service.SubmissionService,
	dashboardService *service.DashboardService,
	authService *service.AuthService,
	log zerolog.Logger,
) *FacultyHandler {
	return &FacultyHandler{
		gradingService:    gradingService,
		violationService:  violationService,
		submissionService: submissionService,
		dashboardService:  dashboardService,
		authService:       authService,
		log:               log.With().Str("component", "faculty_handler").Logger(),
	}
}

// GradeAnswer godoc
// POST /api/v1/faculty/answers/:id/grade
func (h *FacultyHandler) GradeAnswer(c *gin.Context) {
	answerID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	graderID, ok := callerID(c)
	if !ok {
		return
	}

	var req model.GradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	graded, err := h.gradingService.GradeAnswer(c.Request.Context(), answerID, req.Marks, graderID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, graded)
}

// TerminateSession godoc
// POST /api/v1/faculty/sessions/:id/terminate
func (h *FacultyHandler) TerminateSession(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	sess, err := h.violationService.TerminateStudent(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// AllowContinue godoc
// POST /api/v1/faculty/sessions/:id/allow-continue
// Reinstates a terminated session.
func (h *FacultyHandler) AllowContinue(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	sess, err := h.violationService.AllowContinue(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// ForceSubmit godoc
// POST /api/v1/faculty/sessions/:id/force-submit
// Submits whatever answers the session already holds and terminates it.
func (h *FacultyHandler) ForceSubmit(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	sess, err := h.submissionService.SubmitTest(c.Request.Context(), sessionID, model.SubmitTestRequest{Forced: true})
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// SessionAnswers godoc
// GET /api/v1/faculty/sessions/:id/answers
func (h *FacultyHandler) SessionAnswers(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	answers, err := h.dashboardService.SessionAnswers(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, answers)
}

// SessionMonitoringLogs godoc
// GET /api/v1/faculty/sessions/:id/monitoring
func (h *FacultyHandler) SessionMonitoringLogs(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	logs, err := h.dashboardService.SessionMonitoringLogs(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, logs)
}

// ResetStudentSession godoc
// POST /api/v1/faculty/students/:id/reset-session
// Frees a student's single-device login slot.
func (h *FacultyHandler) ResetStudentSession(c *gin.Context) {
	studentID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		failFromError(c, err, h.log)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
