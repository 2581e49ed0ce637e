package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"krl-safety-backend/internal/mw"
	"krl-safety-backend/internal/store"
)

// GetTrainSummary handles GET /api/krl/summary. With scope=mine only the
// caller's trains are summarised.
func (h *Handler) GetTrainSummary(c *gin.Context) {
	officerID := ""
	if c.Query("scope") == "mine" {
		officerID = mw.OfficerID(c)
	}

	summaries, err := h.store.TrainSummaries(c.Request.Context(), officerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summaries})
}

// GetTrains handles GET /api/krl/all.
func (h *Handler) GetTrains(c *gin.Context) {
	trains, err := h.store.ListTrains(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    trains,
		"message": "Successfully retrieved all KRL data",
	})
}

// ListCarriages handles GET /api/gerbong.
func (h *Handler) ListCarriages(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	size, err := queryInt(c, "pageSize", store.MaxPageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter := store.CarriageFilter{TrainID: strings.TrimSpace(c.Query("krlId"))}
	if c.Query("scope") == "mine" {
		filter.OfficerID = mw.OfficerID(c)
	}

	p := store.Page{Number: page, Size: size}.Normalize()
	list, err := h.store.ListCarriages(c.Request.Context(), filter, p)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items":    list.Items,
			"total":    list.Total,
			"page":     p.Number,
			"pageSize": p.Size,
		},
	})
}

// GetCarriage handles GET /api/gerbong/:id.
func (h *Handler) GetCarriage(c *gin.Context) {
	detail, err := h.store.GetCarriage(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": detail})
}
