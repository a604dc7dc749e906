package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/lab-portal-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps err onto a status code and sends the error envelope
func RespondWithError(c *gin.Context, err error) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("request failed")
	}

	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   message,
	})
}

// RespondWithMessage sends an error envelope with an explicit status
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   message,
	})
}

// StatusFor returns the HTTP status and client-facing message for err.
func StatusFor(err error) (int, string) {
	appErr, ok := errors.AsApp(err)
	if !ok {
		return http.StatusInternalServerError, "internal server error"
	}

	switch appErr.Kind {
	case errors.ErrBadRequest:
		return http.StatusBadRequest, appErr.Message
	case errors.ErrNotFound:
		return http.StatusNotFound, appErr.Message
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized, appErr.Message
	case errors.ErrForbidden:
		return http.StatusForbidden, appErr.Message
	case errors.ErrConflict:
		return http.StatusConflict, appErr.Message
	case errors.ErrUpstream:
		if appErr.Status >= http.StatusBadRequest {
			return appErr.Status, appErr.Error()
		}
		return http.StatusInternalServerError, appErr.Error()
	default:
		return http.StatusInternalServerError, appErr.Message
	}
}
