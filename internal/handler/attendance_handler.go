package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
)

// AttendanceHandler exposes roll-call and attendance marking endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// RollCall godoc
// @Summary Roll-call roster for a session
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/rollcall [get]
func (h *AttendanceHandler) RollCall(c *gin.Context) {
	rollCall, err := h.attendance.RollCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rollCall, nil)
}

// Mark godoc
// @Summary Mark one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// MarkBatch godoc
// @Summary Mark several students for one session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /attendance/batch [post]
func (h *AttendanceHandler) MarkBatch(c *gin.Context) {
	var req service.MarkAttendanceBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	records, err := h.attendance.MarkBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, records)
}

// Unmark godoc
// @Summary Remove an attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 204 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Unmark(c *gin.Context) {
	if err := h.attendance.Unmark(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRollCall godoc
// @Summary Download the roll-call sheet for a session
// @Tags Attendance
// @Produce text/csv
// @Param id path string true "Session ID"
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Router /sessions/{id}/rollcall/export [get]
func (h *AttendanceHandler) ExportRollCall(c *gin.Context) {
	sessionID := c.Param("id")
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))

	payload, contentType, err := h.attendance.ExportRollCall(c.Request.Context(), sessionID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("rollcall-%s.%s", sessionID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
