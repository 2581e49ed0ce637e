package mw

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/model"
)

const officerKey = "officer"

// OfficerLookup resolves the officer id forwarded by the identity proxy.
type OfficerLookup interface {
	GetOfficer(ctx context.Context, id string) (model.Officer, error)
}

// Auth requires an officer id in header and loads the officer. Missing or
// unknown ids are rejected with 401.
func Auth(header string, lookup OfficerLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(header))
		if id == "" {
			abortError(c, http.StatusUnauthorized, apperr.ErrUnauthorized.Error(), "missing officer identity")
			return
		}

		officer, err := lookup.GetOfficer(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				abortError(c, http.StatusUnauthorized, apperr.ErrUnauthorized.Error(), "unknown officer")
				return
			}
			logging.FromContext(c.Request.Context()).Error("failed to resolve officer", zap.String("officer_id", id), zap.Error(err))
			abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		c.Set(officerKey, officer)
		ctx := logging.WithLogger(c.Request.Context(), logging.FromContext(c.Request.Context()).With(zap.String("officer_id", officer.ID)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Officer returns the authenticated officer.
func Officer(c *gin.Context) (model.Officer, bool) {
	v, ok := c.Get(officerKey)
	if !ok {
		return model.Officer{}, false
	}
	o, ok := v.(model.Officer)
	return o, ok
}

// OfficerID returns the authenticated officer's id, or "" when anonymous.
func OfficerID(c *gin.Context) string {
	o, _ := Officer(c)
	return o.ID
}

// SharedToken guards machine-to-machine endpoints with a static token when
// one is configured. An empty token disables the check.
func SharedToken(header, token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abortError(c, http.StatusUnauthorized, apperr.ErrUnauthorized.Error(), "invalid webhook token")
			return
		}
		c.Next()
	}
}
