package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/logging"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders the last error recorded by a handler.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusInternalServerError {
			logging.FromContext(c.Request.Context()).Error("request failed",
				zap.String("route", c.FullPath()),
				zap.Error(lastErr.Err))
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

// AbortWithError records err for ErrorHandlingMiddleware and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidBody(err error) error {
	if err == nil || errors.Is(err, io.EOF) || err.Error() == "invalid request" {
		return apperr.Validation("", "invalid request")
	}
	return apperr.Validation("", "invalid request: "+err.Error())
}

func mapError(err error) (int, errorPayload) {
	if vErr, ok := apperr.AsValidation(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    apperr.ErrValidation.Error(),
			Message: vErr.Message,
			Field:   vErr.Field,
		}
	}

	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, errorPayload{Type: apperr.ErrValidation.Error(), Message: err.Error()}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: apperr.ErrNotFound.Error(), Message: err.Error()}
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: apperr.ErrUnauthorized.Error(), Message: err.Error()}
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{Type: apperr.ErrInvalidTransition.Error(), Message: err.Error()}
	case errors.Is(err, apperr.ErrDependencyDegraded):
		return http.StatusServiceUnavailable, errorPayload{Type: apperr.ErrDependencyDegraded.Error(), Message: "dependency unavailable"}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
