package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
)

// ClassSessionHandler exposes concrete teaching session endpoints.
type ClassSessionHandler struct {
	sessions *service.ClassSessionService
}

// NewClassSessionHandler constructs ClassSessionHandler.
func NewClassSessionHandler(sessions *service.ClassSessionService) *ClassSessionHandler {
	return &ClassSessionHandler{sessions: sessions}
}

// List godoc
// @Summary List class sessions
// @Tags Sessions
// @Produce json
// @Param classId query string false "Filter by class"
// @Param from query string false "Earliest date (RFC 3339 date)"
// @Param to query string false "Latest date (RFC 3339 date)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *ClassSessionHandler) List(c *gin.Context) {
	var filter models.ClassSessionFilter
	filter.ClassID = c.Query("classId")
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
			return
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
			return
		}
		filter.DateTo = &to
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	sessions, pagination, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get class session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *ClassSessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Create class session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.ClassSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *ClassSessionHandler) Create(c *gin.Context) {
	var req service.ClassSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update class session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.ClassSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *ClassSessionHandler) Update(c *gin.Context) {
	var req service.ClassSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete class session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *ClassSessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
