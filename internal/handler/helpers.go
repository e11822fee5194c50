package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/middleware"
	"github.com/proctorhq/proctor-backend/internal/repository"
	"github.com/proctorhq/proctor-backend/internal/response"
	"github.com/proctorhq/proctor-backend/internal/service"
)

// failFromError maps domain errors onto the response envelope. Unknown errors
// are logged and reported as internal.
func failFromError(c *gin.Context, err error, log zerolog.Logger) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, repository.ErrAnswerGraded):
		response.Fail(c, http.StatusConflict, response.ErrAnswerGraded)
	case errors.Is(err, service.ErrSessionNotLive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotLive)
	case errors.Is(err, service.ErrSessionNotTerminated):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotTerminated)
	case errors.Is(err, service.ErrInvalidMarks):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidMarks)
	case errors.Is(err, service.ErrMarksExceedMax):
		response.Fail(c, http.StatusBadRequest, response.ErrMarksExceedMax)
	case errors.Is(err, service.ErrUnknownEventType):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownEventType)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramUUID parses a path parameter as a uuid, failing the request on error.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// callerID resolves the authenticated user's id from the JWT claims.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	id, err := claims.UserID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return id, true
}
