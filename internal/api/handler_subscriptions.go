package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/mw"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription handles the creation or replacement of the caller's subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}

	subscription := model.PushSubscription{
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		OfficerID: mw.OfficerID(c),
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), subscription); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of the caller's subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), mw.OfficerID(c), req.Endpoint); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true // not URL-decoded
		}
	}
	return "", false
}

// GetSubscription reports whether the caller's endpoint is registered.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		AbortWithError(c, apperr.Validation("endpoint", "is required"))
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), mw.OfficerID(c), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"endpoint":  subscription.Endpoint,
			"createdAt": subscription.CreatedAt,
		},
	})
}
