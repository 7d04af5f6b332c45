package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
)

// PaymentHandler exposes payment endpoints and manages per-invoice QR
// confirmation watchers.
type PaymentHandler struct {
	payments   *service.PaymentService
	dashboard  *service.DashboardService
	metrics    *service.MetricsService
	newWatcher func() *service.PaymentWatcher
	logger     *zap.Logger

	mu       sync.Mutex
	watchers map[string]*service.PaymentWatcher
}

// NewPaymentHandler constructs PaymentHandler. newWatcher is called once per
// invoice confirmation flow.
func NewPaymentHandler(payments *service.PaymentService, dashboard *service.DashboardService, metrics *service.MetricsService, newWatcher func() *service.PaymentWatcher, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{
		payments:   payments,
		dashboard:  dashboard,
		metrics:    metrics,
		newWatcher: newWatcher,
		logger:     logger,
		watchers:   make(map[string]*service.PaymentWatcher),
	}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param invoiceId query string false "Filter by invoice"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	filter.InvoiceID = c.Query("invoiceId")
	filter.Status = models.PaymentStatus(strings.ToUpper(c.Query("status")))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	payments, pagination, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Create godoc
// @Summary Open a payment attempt with QR descriptor
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Confirm godoc
// @Summary Settle a payment matched to an incoming bank transfer
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Payment reference"
// @Success 200 {object} response.Envelope
// @Router /payments/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var payload struct {
		Reference string `json:"reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "reference required"))
		return
	}
	payment, err := h.payments.Confirm(c.Request.Context(), payload.Reference, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	now := time.Now()
	h.dashboard.InvalidateFinancial(c.Request.Context(), int(now.Month()), now.Year())
	h.metrics.RecordPaymentSettled()
	response.JSON(c, http.StatusOK, payment, nil)
}

// Fail godoc
// @Summary Mark a pending payment attempt failed
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 204 {object} response.Envelope
// @Router /payments/{id}/fail [put]
func (h *PaymentHandler) Fail(c *gin.Context) {
	if err := h.payments.Fail(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Watch godoc
// @Summary Start watching an invoice for QR payment confirmation
// @Tags Payments
// @Produce json
// @Param invoiceId path string true "Invoice ID"
// @Success 201 {object} response.Envelope
// @Router /payments/watch/{invoiceId} [post]
func (h *PaymentHandler) Watch(c *gin.Context) {
	invoiceID := c.Param("invoiceId")

	h.mu.Lock()
	watcher, exists := h.watchers[invoiceID]
	if exists && watcher.ShouldStayOpen() {
		h.mu.Unlock()
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "a payment attempt is already being watched for this invoice"))
		return
	}
	watcher = h.newWatcher()
	h.watchers[invoiceID] = watcher
	h.mu.Unlock()

	watcher.OnPaid(func(paidInvoiceID string) {
		// Runs long after the originating request finished.
		now := time.Now()
		h.dashboard.InvalidateFinancial(context.Background(), int(now.Month()), now.Year())
		h.metrics.RecordPaymentSettled()
		h.logger.Info("invoice settled via QR confirmation", zap.String("invoice_id", paidInvoiceID))
	})

	payment, err := watcher.Confirm(c.Request.Context(), invoiceID)
	if err != nil {
		h.mu.Lock()
		delete(h.watchers, invoiceID)
		h.mu.Unlock()
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{
		"state":   watcher.State(),
		"payment": payment,
	})
}

// WatchStatus godoc
// @Summary Current state of an invoice payment watcher
// @Tags Payments
// @Produce json
// @Param invoiceId path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /payments/watch/{invoiceId} [get]
func (h *PaymentHandler) WatchStatus(c *gin.Context) {
	h.mu.Lock()
	watcher, exists := h.watchers[c.Param("invoiceId")]
	h.mu.Unlock()
	if !exists {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no watcher for this invoice"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"state":          watcher.State(),
		"payment":        watcher.Payment(),
		"shouldStayOpen": watcher.ShouldStayOpen(),
	}, nil)
}

// WatchClose godoc
// @Summary Close an invoice payment watcher
// @Tags Payments
// @Produce json
// @Param invoiceId path string true "Invoice ID"
// @Param force query bool false "Force close while polling"
// @Success 204 {object} response.Envelope
// @Router /payments/watch/{invoiceId} [delete]
func (h *PaymentHandler) WatchClose(c *gin.Context) {
	invoiceID := c.Param("invoiceId")
	h.mu.Lock()
	watcher, exists := h.watchers[invoiceID]
	h.mu.Unlock()
	if !exists {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no watcher for this invoice"))
		return
	}

	force, _ := strconv.ParseBool(c.Query("force"))
	if !watcher.Close(force) {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "watcher is polling; close with force to abandon the attempt"))
		return
	}

	h.mu.Lock()
	delete(h.watchers, invoiceID)
	h.mu.Unlock()
	response.NoContent(c)
}
