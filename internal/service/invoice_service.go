package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type invoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
	FindByStudentAndPeriod(ctx context.Context, studentID string, month, year int) (*models.Invoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error)
	ListByPeriod(ctx context.Context, month, year int) ([]models.InvoiceDetail, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	CreateBatch(ctx context.Context, invoices []*models.Invoice) error
	Update(ctx context.Context, invoice *models.Invoice) error
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error
	CountByYearPrefix(ctx context.Context, prefix string) (int, error)
	Delete(ctx context.Context, id string) error
}

type enrollmentRosterReader interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateInvoiceRequest describes the single invoice creation payload.
type CreateInvoiceRequest struct {
	StudentID      string     `json:"student_id" validate:"required"`
	ClassID        string     `json:"class_id" validate:"required"`
	Month          int        `json:"month" validate:"required,gte=1,lte=12"`
	Year           int        `json:"year" validate:"required,gte=2000"`
	Amount         float64    `json:"amount" validate:"gte=0"`
	DiscountAmount float64    `json:"discount_amount" validate:"gte=0"`
	DueDate        *time.Time `json:"due_date"`
}

// CreateBatchInvoicesRequest issues invoices for every active enrollment of
// a class in one billing month.
type CreateBatchInvoicesRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Month   int    `json:"month" validate:"required,gte=1,lte=12"`
	Year    int    `json:"year" validate:"required,gte=2000"`
}

// UpdateInvoiceRequest adjusts amounts and the due date of an invoice.
type UpdateInvoiceRequest struct {
	Amount         float64    `json:"amount" validate:"gte=0"`
	DiscountAmount float64    `json:"discount_amount" validate:"gte=0"`
	DueDate        *time.Time `json:"due_date"`
}

// InvoiceServiceConfig carries invoicing policy knobs.
type InvoiceServiceConfig struct {
	NumberPrefix     string
	DefaultDueInDays int
}

// InvoiceService manages tuition invoices and their derived aggregates.
type InvoiceService struct {
	repo        invoiceRepository
	enrollments enrollmentRosterReader
	classes     classReader
	audits      auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
	config      InvoiceServiceConfig
}

// NewInvoiceService constructs InvoiceService.
func NewInvoiceService(repo invoiceRepository, enrollments enrollmentRosterReader, classes classReader, audits auditWriter, validate *validator.Validate, logger *zap.Logger, config InvoiceServiceConfig) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.NumberPrefix == "" {
		config.NumberPrefix = "INV"
	}
	if config.DefaultDueInDays <= 0 {
		config.DefaultDueInDays = 15
	}
	return &InvoiceService{repo: repo, enrollments: enrollments, classes: classes, audits: audits, validator: validate, logger: logger, config: config}
}

// TotalExpectedAmount sums the gross amount of every invoice regardless of
// status.
func TotalExpectedAmount(invoices []models.InvoiceDetail) float64 {
	var total float64
	for _, invoice := range invoices {
		total += invoice.Amount
	}
	return total
}

// TotalActualAmount sums the effective amount owed, falling back to the
// gross amount when no net amount is recorded.
func TotalActualAmount(invoices []models.InvoiceDetail) float64 {
	var total float64
	for _, invoice := range invoices {
		total += invoice.EffectiveAmount()
	}
	return total
}

// TotalDiscountAmount sums only the flat discount field.
func TotalDiscountAmount(invoices []models.InvoiceDetail) float64 {
	var total float64
	for _, invoice := range invoices {
		total += invoice.DiscountAmount
	}
	return total
}

// OutstandingBalance sums the effective amount of every invoice that is not
// PAID. CANCELLED invoices stay in the balance; downstream reports expect
// that behavior.
func OutstandingBalance(invoices []models.InvoiceDetail) float64 {
	var total float64
	for _, invoice := range invoices {
		if invoice.Status == models.InvoiceStatusPaid {
			continue
		}
		total += invoice.EffectiveAmount()
	}
	return total
}

// BuildFinancialSummary bundles the dashboard aggregates for a set of
// invoices. Its totalDiscount combines the flat discount with the student's
// percentage discount applied to the gross amount, which is a wider figure
// than TotalDiscountAmount reports.
func BuildFinancialSummary(invoices []models.InvoiceDetail) models.FinancialSummary {
	summary := models.FinancialSummary{
		ExpectedIncome:     TotalExpectedAmount(invoices),
		ActualIncome:       TotalActualAmount(invoices),
		OutstandingBalance: OutstandingBalance(invoices),
	}
	for _, invoice := range invoices {
		summary.TotalDiscount += invoice.DiscountAmount + invoice.Amount*invoice.StudentDiscountPercentage/100
		switch invoice.Status {
		case models.InvoiceStatusPaid:
			summary.PaidCount++
		case models.InvoiceStatusUnpaid:
			summary.UnpaidCount++
		case models.InvoiceStatusOverdue:
			summary.OverdueCount++
		}
	}
	return summary
}

// List returns invoices with pagination metadata.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, *models.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list invoices")
	}
	return invoices, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single invoice with joined detail.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("invoice not found")
		}
		return nil, internalErr(err, "failed to load invoice")
	}
	return invoice, nil
}

// FinancialSummary computes the dashboard aggregates for one billing month.
func (s *InvoiceService) FinancialSummary(ctx context.Context, month, year int) (*models.FinancialSummary, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month out of range")
	}
	invoices, err := s.repo.ListByPeriod(ctx, month, year)
	if err != nil {
		return nil, internalErr(err, "failed to load invoices for summary")
	}
	summary := BuildFinancialSummary(invoices)
	return &summary, nil
}

// Create issues a single invoice.
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (*models.InvoiceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid invoice payload")
	}
	if req.DiscountAmount > req.Amount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount exceeds invoice amount")
	}

	if _, err := s.repo.FindByStudentAndPeriod(ctx, req.StudentID, req.Month, req.Year); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice already issued for this period")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err, "failed to check invoice uniqueness")
	}

	number, err := s.nextInvoiceNumber(ctx, req.Year, 0)
	if err != nil {
		return nil, err
	}
	invoice := s.buildInvoice(number, req.StudentID, req.ClassID, req.Month, req.Year, req.Amount, req.DiscountAmount, req.DueDate)
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, internalErr(err, "failed to create invoice")
	}
	return s.Get(ctx, invoice.ID)
}

// CreateBatch issues invoices for every active enrollment of a class in one
// billing month. Students already invoiced for the period are skipped.
func (s *InvoiceService) CreateBatch(ctx context.Context, req CreateBatchInvoicesRequest) ([]models.InvoiceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid batch invoice payload")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class not found")
		}
		return nil, internalErr(err, "failed to load class")
	}

	enrollments, err := s.enrollments.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, internalErr(err, "failed to load class roster")
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no active enrollments")
	}

	var invoices []*models.Invoice
	for _, enrollment := range enrollments {
		if _, err := s.repo.FindByStudentAndPeriod(ctx, enrollment.StudentID, req.Month, req.Year); err == nil {
			s.logger.Debug("skipping already invoiced student",
				zap.String("student_id", enrollment.StudentID),
				zap.Int("month", req.Month),
				zap.Int("year", req.Year))
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, internalErr(err, "failed to check invoice uniqueness")
		}

		number, err := s.nextInvoiceNumber(ctx, req.Year, len(invoices))
		if err != nil {
			return nil, err
		}
		discount := enrollment.TuitionFee * enrollment.DiscountPercentage / 100
		invoices = append(invoices, s.buildInvoice(number, enrollment.StudentID, req.ClassID, req.Month, req.Year, enrollment.TuitionFee, discount, nil))
	}
	if len(invoices) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "all students already invoiced for this period")
	}

	if err := s.repo.CreateBatch(ctx, invoices); err != nil {
		return nil, internalErr(err, "failed to create invoices")
	}

	created := make([]models.InvoiceDetail, 0, len(invoices))
	for _, invoice := range invoices {
		detail, err := s.Get(ctx, invoice.ID)
		if err != nil {
			return nil, err
		}
		created = append(created, *detail)
	}
	return created, nil
}

// Update adjusts the amounts and due date of an unpaid invoice.
func (s *InvoiceService) Update(ctx context.Context, id string, req UpdateInvoiceRequest) (*models.InvoiceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid invoice payload")
	}
	if req.DiscountAmount > req.Amount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount exceeds invoice amount")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Status == models.InvoiceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "paid invoices cannot be modified")
	}
	if detail.Status == models.InvoiceStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cancelled invoices cannot be modified")
	}

	invoice := detail.Invoice
	invoice.Amount = req.Amount
	invoice.DiscountAmount = req.DiscountAmount
	final := req.Amount - req.DiscountAmount
	invoice.FinalAmount = &final
	if req.DueDate != nil {
		invoice.DueDate = *req.DueDate
	}

	if err := s.repo.Update(ctx, &invoice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("invoice not found")
		}
		return nil, internalErr(err, "failed to update invoice")
	}
	return s.Get(ctx, id)
}

// Cancel voids an invoice that has not been paid.
func (s *InvoiceService) Cancel(ctx context.Context, id, actorID string) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if detail.Status == models.InvoiceStatusPaid {
		return appErrors.Clone(appErrors.ErrAlreadyPaid, "paid invoices cannot be cancelled")
	}
	if detail.Status == models.InvoiceStatusCancelled {
		return appErrors.Clone(appErrors.ErrConflict, "invoice already cancelled")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.InvoiceStatusCancelled); err != nil {
		return internalErr(err, "failed to cancel invoice")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionInvoiceCancel,
		Resource:   "invoices",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record invoice cancel audit log", zap.Error(err))
	}
	return nil
}

func (s *InvoiceService) buildInvoice(number, studentID, classID string, month, year int, amount, discount float64, dueDate *time.Time) *models.Invoice {
	now := time.Now().UTC()
	due := now.AddDate(0, 0, s.config.DefaultDueInDays)
	if dueDate != nil {
		due = *dueDate
	}

	invoice := &models.Invoice{
		InvoiceNumber:  number,
		StudentID:      studentID,
		ClassID:        classID,
		Month:          month,
		Year:           year,
		Amount:         amount,
		DiscountAmount: discount,
		Status:         models.InvoiceStatusUnpaid,
		IssueDate:      now,
		DueDate:        due,
	}
	if discount > 0 {
		final := amount - discount
		invoice.FinalAmount = &final
	}
	return invoice
}

// nextInvoiceNumber allocates the next sequential number for a year; offset
// accounts for invoices staged in the current batch but not yet persisted.
func (s *InvoiceService) nextInvoiceNumber(ctx context.Context, year, offset int) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", s.config.NumberPrefix, year)
	count, err := s.repo.CountByYearPrefix(ctx, prefix)
	if err != nil {
		return "", internalErr(err, "failed to allocate invoice number")
	}
	return fmt.Sprintf("%s%04d", prefix, count+offset+1), nil
}
