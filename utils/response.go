package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"socialbox/logging"
	"socialbox/models"
)

const internalErrorMessage = "Internal server error"

// Respond writes {"message": message, ...payload}.
func Respond(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"message": message}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

func Success(c *gin.Context, message string, payload gin.H) {
	Respond(c, http.StatusOK, message, payload)
}

func Created(c *gin.Context, message string, payload gin.H) {
	Respond(c, http.StatusCreated, message, payload)
}

func BadRequest(c *gin.Context, message string) {
	Respond(c, http.StatusBadRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	Respond(c, http.StatusUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	Respond(c, http.StatusForbidden, message, nil)
}

func NotFound(c *gin.Context, message string) {
	Respond(c, http.StatusNotFound, message, nil)
}

func Conflict(c *gin.Context, message string) {
	Respond(c, http.StatusConflict, message, nil)
}

func TooManyRequests(c *gin.Context, message string) {
	Respond(c, http.StatusTooManyRequests, message, nil)
}

func InternalError(c *gin.Context) {
	Respond(c, http.StatusInternalServerError, internalErrorMessage, nil)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error answers with the status and message of an *AppError. Anything else is
// logged with its full chain and answered with an opaque 500.
func Error(c *gin.Context, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Kind != models.KindInternal {
		Respond(c, StatusFor(appErr.Kind), appErr.Message, nil)
		return
	}

	logging.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("Unhandled error")
	_ = c.Error(err)
	InternalError(c)
}
