package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/mw"
)

// GetUserSettings handles GET /api/user/settings.
func (h *Handler) GetUserSettings(c *gin.Context) {
	officer, err := h.store.GetOfficer(c.Request.Context(), mw.OfficerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    officer,
		"settings": gin.H{
			"status": true,
			"sound":  officer.IsVoiceActive,
		},
	})
}

type updateSettingsRequest struct {
	Settings *struct {
		Sound *bool `json:"sound"`
	} `json:"settings"`
}

// PutUserSettings handles PUT /api/user/settings.
func (h *Handler) PutUserSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}
	if req.Settings == nil || req.Settings.Sound == nil {
		AbortWithError(c, apperr.Validation("settings.sound", "is required"))
		return
	}

	officer, err := h.store.UpdateVoicePreference(c.Request.Context(), mw.OfficerID(c), *req.Settings.Sound)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Settings updated successfully",
		"user":    officer,
	})
}

// GetTrainSelection handles GET /api/user/krl-selection.
func (h *Handler) GetTrainSelection(c *gin.Context) {
	active, err := h.store.ActiveTrain(c.Request.Context(), mw.OfficerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"success": true, "activeKrlId": nil, "assignedFrom": nil}
	if active != nil {
		resp["activeKrlId"] = active.TrainID
		resp["assignedFrom"] = active.AssignedFrom
	}
	c.JSON(http.StatusOK, resp)
}

type selectTrainRequest struct {
	TrainID string `json:"krlId"`
}

// PostTrainSelection handles POST /api/user/krl-selection.
func (h *Handler) PostTrainSelection(c *gin.Context) {
	var req selectTrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}
	if strings.TrimSpace(req.TrainID) == "" {
		AbortWithError(c, apperr.Validation("krlId", "is required"))
		return
	}

	assignment, err := h.store.SelectTrain(c.Request.Context(), mw.OfficerID(c), req.TrainID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "KRL selected successfully",
		"assignment": assignment,
	})
}
