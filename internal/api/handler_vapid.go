package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"krl-safety-backend/internal/apperr"
)

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		AbortWithError(c, apperr.ErrDependencyDegraded)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "public_key": h.webpush.VAPIDPublicKey})
}

// Healthz reports whether the database answers.
func (h *Handler) Healthz(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}
