package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
)

// DashboardHandler exposes aggregated reporting endpoints.
type DashboardHandler struct {
	dashboard *service.DashboardService
	metrics   *service.MetricsService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService, metrics *service.MetricsService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, metrics: metrics}
}

// Financial godoc
// @Summary Financial summary for a billing period
// @Tags Dashboard
// @Produce json
// @Param month query int true "Billing month (1-12)"
// @Param year query int true "Billing year"
// @Param classId query string false "Scope to one class"
// @Success 200 {object} response.Envelope
// @Router /dashboard/financial [get]
func (h *DashboardHandler) Financial(c *gin.Context) {
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month is required"))
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	classID := c.Query("classId")

	summary, hit, err := h.dashboard.Financial(c.Request.Context(), month, year, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDashboardLookup(hit)
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cache_hit": hit})
}
