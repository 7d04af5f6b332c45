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

// InvoiceRepository provides database access for tuition invoices.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository creates a new instance of InvoiceRepository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceDetailColumns = `i.id, i.invoice_number, i.student_id, i.class_id, i.month, i.year, i.amount, i.discount_amount, i.final_amount, i.status, i.issue_date, i.due_date, i.created_at, i.updated_at,
	s.full_name AS student_name, s.code AS student_code, s.discount_percentage AS student_discount_percentage,
	c.name AS class_name`

const invoiceDetailJoins = ` JOIN students s ON s.id = i.student_id
	JOIN classes c ON c.id = i.class_id`

// FindByID returns an invoice with joined detail info.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices i%s WHERE i.id = $1 LIMIT 1`, invoiceDetailColumns, invoiceDetailJoins)
	var invoice models.InvoiceDetail
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return &invoice, nil
}

// FindByStudentAndPeriod returns the invoice for a student in a billing month.
func (r *InvoiceRepository) FindByStudentAndPeriod(ctx context.Context, studentID string, month, year int) (*models.Invoice, error) {
	const query = `SELECT id, invoice_number, student_id, class_id, month, year, amount, discount_amount, final_amount, status, issue_date, due_date, created_at, updated_at
FROM invoices WHERE student_id = $1 AND month = $2 AND year = $3 LIMIT 1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, studentID, month, year); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice by period: %w", err)
	}
	return &invoice, nil
}

// List returns invoices matching the filter with a total count.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error) {
	baseQuery := `FROM invoices i` + invoiceDetailJoins + ` WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("i.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("i.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Month > 0 {
		conditions = append(conditions, fmt.Sprintf("i.month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("i.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "issue_date"
	}
	allowedSorts := map[string]string{
		"issue_date":     "i.issue_date",
		"due_date":       "i.due_date",
		"amount":         "i.amount",
		"status":         "i.status",
		"invoice_number": "i.invoice_number",
		"created_at":     "i.created_at",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "i.issue_date"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", invoiceDetailColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	return invoices, total, nil
}

// ListByPeriod returns every invoice of a billing month with student
// discount context. It backs the financial summary aggregation.
func (r *InvoiceRepository) ListByPeriod(ctx context.Context, month, year int) ([]models.InvoiceDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices i%s WHERE i.month = $1 AND i.year = $2 ORDER BY i.invoice_number ASC`, invoiceDetailColumns, invoiceDetailJoins)
	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, month, year); err != nil {
		return nil, fmt.Errorf("list invoices by period: %w", err)
	}
	return invoices, nil
}

// Create inserts a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	const query = `INSERT INTO invoices (id, invoice_number, student_id, class_id, month, year, amount, discount_amount, final_amount, status, issue_date, due_date, created_at, updated_at)
VALUES (:id, :invoice_number, :student_id, :class_id, :month, :year, :amount, :discount_amount, :final_amount, :status, :issue_date, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// CreateBatch inserts multiple invoices in one transaction. All rows commit
// or none do.
func (r *InvoiceRepository) CreateBatch(ctx context.Context, invoices []*models.Invoice) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invoice batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	const query = `INSERT INTO invoices (id, invoice_number, student_id, class_id, month, year, amount, discount_amount, final_amount, status, issue_date, due_date, created_at, updated_at)
VALUES (:id, :invoice_number, :student_id, :class_id, :month, :year, :amount, :discount_amount, :final_amount, :status, :issue_date, :due_date, :created_at, :updated_at)`
	for _, invoice := range invoices {
		if invoice.ID == "" {
			invoice.ID = uuid.NewString()
		}
		invoice.CreatedAt = now
		invoice.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, invoice); err != nil {
			return fmt.Errorf("create invoice %s: %w", invoice.InvoiceNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice batch: %w", err)
	}
	return nil
}

// Update persists mutable fields of an invoice.
func (r *InvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE invoices SET amount = :amount, discount_amount = :discount_amount, final_amount = :final_amount, status = :status, due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, invoice)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus transitions an invoice to a new billing status.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	const query = `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkOverdue flips every unpaid invoice past its due date to OVERDUE and
// returns the number of affected rows.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `UPDATE invoices SET status = 'OVERDUE', updated_at = $1 WHERE status = 'UNPAID' AND due_date < $1`
	result, err := r.db.ExecContext(ctx, query, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue rows affected: %w", err)
	}
	return rows, nil
}

// CountByYearPrefix returns the number of invoices whose invoice_number
// starts with the given prefix. Used for sequential numbering.
func (r *InvoiceRepository) CountByYearPrefix(ctx context.Context, prefix string) (int, error) {
	const query = `SELECT COUNT(*) FROM invoices WHERE invoice_number LIKE $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, prefix+"%"); err != nil {
		return 0, fmt.Errorf("count invoices by prefix: %w", err)
	}
	return count, nil
}

// Delete removes an invoice.
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM invoices WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete invoice rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
