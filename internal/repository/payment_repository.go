package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

// PaymentRepository provides database access for invoice payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, invoice_id, amount, payment_date, reference_number, status, data_qr, created_at, updated_at FROM payments WHERE id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// FindByReference returns a payment by its client-visible reference number.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	const query = `SELECT id, invoice_id, amount, payment_date, reference_number, status, data_qr, created_at, updated_at FROM payments WHERE reference_number = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}
	return &payment, nil
}

// FindPendingByInvoice returns the most recent pending payment for an invoice.
func (r *PaymentRepository) FindPendingByInvoice(ctx context.Context, invoiceID string) (*models.Payment, error) {
	const query = `SELECT id, invoice_id, amount, payment_date, reference_number, status, data_qr, created_at, updated_at
FROM payments WHERE invoice_id = $1 AND status = 'PENDING' ORDER BY created_at DESC LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, invoiceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending payment: %w", err)
	}
	return &payment, nil
}

// List returns payments matching the filter with a total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	baseQuery := `FROM payments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.InvoiceID != "" {
		conditions = append(conditions, fmt.Sprintf("invoice_id = $%d", len(args)+1))
		args = append(args, filter.InvoiceID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "payment_date"
	}
	allowedSorts := map[string]bool{
		"payment_date": true,
		"amount":       true,
		"status":       true,
		"created_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "payment_date"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, invoice_id, amount, payment_date, reference_number, status, data_qr, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	return payments, total, nil
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, invoice_id, amount, payment_date, reference_number, status, data_qr, created_at, updated_at)
VALUES (:id, :invoice_id, :amount, :payment_date, :reference_number, :status, :data_qr, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// UpdateStatus transitions a payment to a new lifecycle status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompleteAndMarkInvoicePaid marks the payment COMPLETED and its invoice
// PAID inside one transaction so the two never diverge.
func (r *PaymentRepository) CompleteAndMarkInvoicePaid(ctx context.Context, paymentID, invoiceID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment completion: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = 'COMPLETED', payment_date = $2, updated_at = $2 WHERE id = $1`, paymentID, now); err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE invoices SET status = 'PAID', updated_at = $2 WHERE id = $1`, invoiceID, now); err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment completion: %w", err)
	}
	return nil
}
