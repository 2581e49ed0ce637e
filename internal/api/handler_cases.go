package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/lifecycle"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/mw"
	"krl-safety-backend/internal/store"
)

const (
	latestDefaultLimit = 10
	latestMaxLimit     = 100
)

// queryInt parses an integer parameter. Values below 1 are raised to 1.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(key, "must be an integer")
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation(key, "must be true or false")
	}
	return b, nil
}

func queryStatuses(c *gin.Context, key string) ([]model.CaseStatus, error) {
	var out []model.CaseStatus
	for _, part := range strings.Split(c.Query(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := model.CaseStatus(part)
		if !s.Valid() {
			return nil, apperr.Validation(key, "unknown status "+strconv.Quote(part))
		}
		out = append(out, s)
	}
	return out, nil
}

func queryCaseTypes(c *gin.Context, key string) ([]model.CaseType, error) {
	types := model.ParseCaseTypes(c.Query(key))
	for _, t := range types {
		if !t.Valid() {
			return nil, apperr.Validation(key, "unknown case type "+strconv.Quote(string(t)))
		}
	}
	return types, nil
}

// GetLatestCases handles GET /api/kasus/latest. Without includeResolved only
// unhandled cases are returned unless a status is asked for explicitly.
func (h *Handler) GetLatestCases(c *gin.Context) {
	limit, err := queryInt(c, "limit", latestDefaultLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if limit > latestMaxLimit {
		limit = latestMaxLimit
	}
	statuses, err := queryStatuses(c, "status")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	caseTypes, err := queryCaseTypes(c, "caseType")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	includeResolved, err := queryBool(c, "includeResolved")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filter := store.CaseFilter{
		Statuses:        statuses,
		CaseTypes:       caseTypes,
		CarriageID:      strings.TrimSpace(c.Query("gerbongId")),
		IncludeResolved: includeResolved,
	}
	if len(filter.Statuses) == 0 && !includeResolved {
		filter.Statuses = []model.CaseStatus{model.StatusUnhandled}
	}

	var since *string
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			AbortWithError(c, apperr.Validation("since", "must be an RFC3339 timestamp"))
			return
		}
		t = t.UTC()
		filter.ReportedAfter = &t
		since = &raw
	}

	list, err := h.store.ListCases(c.Request.Context(), filter, store.Page{Number: 1, Size: limit})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list.Items,
		"count":   len(list.Items),
		"filters": gin.H{
			"limit":           limit,
			"status":          nullable(c.Query("status")),
			"caseType":        nullable(c.Query("caseType")),
			"gerbongId":       nullable(filter.CarriageID),
			"since":           since,
			"includeResolved": includeResolved,
		},
	})
}

func nullable(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// ListCases handles GET /api/kasus for the trains assigned to the caller.
func (h *Handler) ListCases(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	size, err := queryInt(c, "pageSize", store.DefaultPageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	statuses, err := queryStatuses(c, "status")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	caseTypes, err := queryCaseTypes(c, "caseTypes")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	includeResolved, err := queryBool(c, "includeResolved")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	for _, s := range statuses {
		if s == model.StatusResolved {
			includeResolved = true
		}
	}

	p := store.Page{Number: page, Size: size}.Normalize()
	list, err := h.store.ListCases(c.Request.Context(), store.CaseFilter{
		Statuses:        statuses,
		CaseTypes:       caseTypes,
		CarriageID:      strings.TrimSpace(c.Query("gerbongId")),
		TrainID:         strings.TrimSpace(c.Query("krlId")),
		OfficerID:       mw.OfficerID(c),
		IncludeResolved: includeResolved,
		Search:          c.Query("search"),
	}, p)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	totalPages := (list.Total + int64(p.Size) - 1) / int64(p.Size)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items":      list.Items,
			"total":      list.Total,
			"page":       p.Number,
			"pageSize":   p.Size,
			"totalPages": totalPages,
		},
	})
}

// GetCase handles GET /api/kasus/:id.
func (h *Handler) GetCase(c *gin.Context) {
	kasus, err := h.store.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": kasus})
}

// CreateCase handles POST /api/kasus for officer and passenger reports.
func (h *Handler) CreateCase(c *gin.Context) {
	var req lifecycle.ManualCase
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}
	req.ReporterID = mw.OfficerID(c)

	kasus, err := h.cases.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": kasus})
}

type takeCaseRequest struct {
	CaseID string `json:"kasusId"`
}

// TakeCase handles POST /api/kasus/take: the caller becomes the handler.
func (h *Handler) TakeCase(c *gin.Context) {
	var req takeCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}
	if strings.TrimSpace(req.CaseID) == "" {
		AbortWithError(c, apperr.Validation("kasusId", "is required"))
		return
	}

	kasus, err := h.cases.Claim(c.Request.Context(), req.CaseID, mw.OfficerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": kasus})
}

type updateStatusRequest struct {
	Status          model.CaseStatus `json:"status"`
	ResolutionNotes string           `json:"resolutionNotes"`
}

// UpdateCaseStatus handles PATCH /api/kasus/:id/status.
func (h *Handler) UpdateCaseStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}

	kasus, err := h.cases.UpdateStatus(c.Request.Context(), c.Param("id"), mw.OfficerID(c), req.Status, req.ResolutionNotes)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": kasus})
}

// ArriveAtCase handles POST /api/kasus/:id/arrive.
func (h *Handler) ArriveAtCase(c *gin.Context) {
	kasus, err := h.cases.Arrive(c.Request.Context(), c.Param("id"), mw.OfficerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": kasus})
}

// DeleteCase handles DELETE /api/kasus/:id.
func (h *Handler) DeleteCase(c *gin.Context) {
	kasus, err := h.cases.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": kasus})
}
