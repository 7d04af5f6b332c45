package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindPendingByInvoice(ctx context.Context, invoiceID string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
	CompleteAndMarkInvoicePaid(ctx context.Context, paymentID, invoiceID string) error
}

type invoiceReader interface {
	FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
}

// CreatePaymentRequest initiates a payment attempt for an invoice.
type CreatePaymentRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
}

// PaymentConfig carries the bank transfer descriptor knobs.
type PaymentConfig struct {
	BankAccount string
	BankName    string
	QRBaseURL   string
}

// PaymentService manages invoice payment attempts and QR descriptors.
type PaymentService struct {
	repo      paymentRepository
	invoices  invoiceReader
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	config    PaymentConfig
	now       func() time.Time
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, invoices invoiceReader, audits auditWriter, validate *validator.Validate, logger *zap.Logger, config PaymentConfig) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, invoices: invoices, audits: audits, validator: validate, logger: logger, config: config, now: time.Now}
}

// ReferenceNumber builds the client-visible payment reference from the
// creation timestamp and the tail of the invoice id. The reference doubles
// as the bank transfer memo so a human can match the incoming transfer.
func ReferenceNumber(invoiceID string, ts time.Time) string {
	tail := invoiceID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("PAY-%d-%s", ts.UnixMilli(), tail)
}

// MemoFromQR extracts the transfer memo from a QR descriptor URL's "des"
// query parameter. Empty string means no memo is embedded.
func MemoFromQR(qrURL string) string {
	parsed, err := url.Parse(qrURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("des")
}

// Create opens a PENDING payment for an unpaid invoice and attaches the QR
// descriptor whose memo echoes the payment reference.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid payment payload")
	}

	invoice, err := s.invoices.FindByID(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("invoice not found")
		}
		return nil, internalErr(err, "failed to load invoice")
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "invoice already paid")
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "invoice is cancelled")
	}

	if existing, err := s.repo.FindPendingByInvoice(ctx, req.InvoiceID); err == nil {
		// Reuse the open attempt so repeated dialog opens do not fan out
		// duplicate references.
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err, "failed to check pending payments")
	}

	now := s.now().UTC()
	reference := ReferenceNumber(invoice.ID, now)
	qr := s.buildQRURL(invoice.EffectiveAmount(), reference)

	payment := &models.Payment{
		InvoiceID:       invoice.ID,
		Amount:          invoice.EffectiveAmount(),
		PaymentDate:     now,
		ReferenceNumber: reference,
		Status:          models.PaymentStatusPending,
		DataQR:          &qr,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, internalErr(err, "failed to create payment")
	}
	return payment, nil
}

// Get returns a single payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("payment not found")
		}
		return nil, internalErr(err, "failed to load payment")
	}
	return payment, nil
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list payments")
	}
	return payments, paginate(filter.Page, filter.PageSize, total), nil
}

// Confirm settles a pending payment after the bank transfer is matched,
// marking the invoice PAID in the same transaction.
func (s *PaymentService) Confirm(ctx context.Context, reference, actorID string) (*models.Payment, error) {
	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("payment not found")
		}
		return nil, internalErr(err, "failed to load payment")
	}
	if payment.Status == models.PaymentStatusCompleted {
		return payment, nil
	}
	if payment.Status == models.PaymentStatusFailed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment already failed")
	}

	if err := s.repo.CompleteAndMarkInvoicePaid(ctx, payment.ID, payment.InvoiceID); err != nil {
		return nil, internalErr(err, "failed to settle payment")
	}
	payment.Status = models.PaymentStatusCompleted

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionInvoicePaid,
		Resource:   "payments",
		ResourceID: &payment.ID,
	}); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.Error(err))
	}
	return payment, nil
}

// Fail marks a pending payment attempt FAILED.
func (s *PaymentService) Fail(ctx context.Context, id string) error {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending payments can be failed")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.PaymentStatusFailed); err != nil {
		return internalErr(err, "failed to mark payment failed")
	}
	return nil
}

func (s *PaymentService) buildQRURL(amount float64, memo string) string {
	values := url.Values{}
	values.Set("acc", s.config.BankAccount)
	values.Set("bank", s.config.BankName)
	values.Set("amount", fmt.Sprintf("%.0f", amount))
	values.Set("des", memo)
	return fmt.Sprintf("%s?%s", s.config.QRBaseURL, values.Encode())
}
