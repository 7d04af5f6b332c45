package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
)

// ScheduleHandler exposes weekly timetable endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// respondScheduleError surfaces overlap conflicts as 409 with the conflict
// list; other errors go through the common envelope.
func respondScheduleError(c *gin.Context, err error) {
	var conflict *models.ScheduleConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, response.Envelope{
			Error: appErrors.Clone(appErrors.ErrScheduleOverlap, conflict.Message),
			Meta:  map[string]interface{}{"conflicts": conflict.Conflicts},
		})
		return
	}
	response.Error(c, err)
}

// List godoc
// @Summary List schedule slots
// @Tags Schedules
// @Produce json
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param day query string false "Filter by day of week"
// @Param room query string false "Filter by room"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleFilter
	filter.ClassID = c.Query("classId")
	filter.TeacherID = c.Query("teacherId")
	filter.DayOfWeek = strings.ToLower(c.Query("day"))
	filter.Room = c.Query("room")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	schedules, pagination, err := h.schedules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule slot
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Create godoc
// @Summary Create schedule slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	schedule, err := h.schedules.Create(c.Request.Context(), req)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	response.Created(c, schedule)
}

// CreateBatch godoc
// @Summary Create several schedule slots atomically
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body []service.ScheduleRequest true "Schedule slots"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/batch [post]
func (h *ScheduleHandler) CreateBatch(c *gin.Context) {
	var reqs []service.ScheduleRequest
	if !bindJSON(c, &reqs) {
		return
	}
	schedules, err := h.schedules.CreateBatch(c.Request.Context(), reqs)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	response.Created(c, schedules)
}

// Update godoc
// @Summary Update schedule slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	schedule, err := h.schedules.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondScheduleError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete schedule slot
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 204 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteBatch godoc
// @Summary Delete several schedule slots
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body map[string][]string true "Schedule ids"
// @Success 204 {object} response.Envelope
// @Router /schedules/batch [delete]
func (h *ScheduleHandler) DeleteBatch(c *gin.Context) {
	var payload struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "ids required"))
		return
	}
	if err := h.schedules.DeleteBatch(c.Request.Context(), payload.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
