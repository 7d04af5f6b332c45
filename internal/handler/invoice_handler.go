package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
)

// InvoiceHandler exposes invoice endpoints.
type InvoiceHandler struct {
	invoices  *service.InvoiceService
	dashboard *service.DashboardService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices *service.InvoiceService, dashboard *service.DashboardService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, dashboard: dashboard}
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param month query int false "Billing month"
// @Param year query int false "Billing year"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter models.InvoiceFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.Status = models.InvoiceStatus(strings.ToUpper(c.Query("status")))
	if month, err := strconv.Atoi(c.Query("month")); err == nil {
		filter.Month = month
	}
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	invoices, pagination, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Get godoc
// @Summary Get invoice detail
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoice, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Summary godoc
// @Summary Financial summary for a billing month
// @Tags Invoices
// @Produce json
// @Param month query int true "Billing month"
// @Param year query int true "Billing year"
// @Success 200 {object} response.Envelope
// @Router /invoices/summary [get]
func (h *InvoiceHandler) Summary(c *gin.Context) {
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
	summary, err := h.invoices.FinancialSummary(c.Request.Context(), month, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Create godoc
// @Summary Create invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param payload body service.CreateInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Router /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoices.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateFinancial(c.Request.Context(), req.Month, req.Year)
	response.Created(c, invoice)
}

// CreateBatch godoc
// @Summary Create invoices for every active enrollment of a class
// @Tags Invoices
// @Accept json
// @Produce json
// @Param payload body service.CreateBatchInvoicesRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /invoice/multiple [post]
func (h *InvoiceHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchInvoicesRequest
	if !bindJSON(c, &req) {
		return
	}
	invoices, err := h.invoices.CreateBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateFinancial(c.Request.Context(), req.Month, req.Year)
	response.Created(c, invoices)
}

// Update godoc
// @Summary Update invoice amounts and due date
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body service.UpdateInvoiceRequest true "Invoice payload"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	var req service.UpdateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoices.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateFinancial(c.Request.Context(), invoice.Month, invoice.Year)
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Cancel godoc
// @Summary Cancel invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 204 {object} response.Envelope
// @Router /invoices/{id}/cancel [put]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoice, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.invoices.Cancel(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateFinancial(c.Request.Context(), invoice.Month, invoice.Year)
	response.NoContent(c)
}
