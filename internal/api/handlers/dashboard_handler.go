package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/services"
)

type DashboardHandler struct {
	svc services.DashboardService
}

func NewDashboardHandler(svc services.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

type BulkInsightsRequest struct {
	CallIDs []string `json:"call_ids" binding:"required,min=1,max=500"`
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	var opts services.SummaryOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		badRequest(c, "DashboardHandler.Summary", "invalid query", err)
		return
	}
	sum, err := h.svc.Summary(c.Request.Context(), tenantID, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *DashboardHandler) Trend(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	kind := models.TrendKind(c.Param("kind"))
	points, err := h.svc.Trend(c.Request.Context(), kind, tenantID, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": kind, "days": days, "points": points})
}

func (h *DashboardHandler) Calls(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	var q models.CallQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "DashboardHandler.Calls", "invalid query", err)
		return
	}
	q.TenantID = tenantID
	points, err := h.svc.Calls(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": points, "count": len(points)})
}

func (h *DashboardHandler) BulkInsights(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	var req BulkInsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "DashboardHandler.BulkInsights", "invalid request body", err)
		return
	}
	all, err := h.svc.BulkInsights(c.Request.Context(), tenantID, req.CallIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": all})
}

// CacheAdmin is the subset of the cache layer exposed to operators.
type CacheAdmin interface {
	InvalidateTenant(ctx context.Context, tenantID string)
	ClearAll(ctx context.Context)
}

type AdminHandler struct {
	cache CacheAdmin
}

func NewAdminHandler(cache CacheAdmin) *AdminHandler {
	return &AdminHandler{cache: cache}
}

func (h *AdminHandler) InvalidateTenant(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	h.cache.InvalidateTenant(c.Request.Context(), tenantID)
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ClearAll(c *gin.Context) {
	h.cache.ClearAll(c.Request.Context())
	c.Status(http.StatusNoContent)
}
