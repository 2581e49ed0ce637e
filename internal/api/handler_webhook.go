package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"krl-safety-backend/internal/ingest"
)

// PostWebhook handles detections posted by the crowd detector.
func (h *Handler) PostWebhook(c *gin.Context) {
	var d ingest.Detection
	if err := c.ShouldBindJSON(&d); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), d)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook processed successfully",
		"data":    res,
	})
}
