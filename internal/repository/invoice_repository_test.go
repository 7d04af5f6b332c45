package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

func newInvoiceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func invoiceDetailMockRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "invoice_number", "student_id", "class_id", "month", "year", "amount", "discount_amount", "final_amount", "status", "issue_date", "due_date", "created_at", "updated_at", "student_name", "student_code", "student_discount_percentage", "class_name"})
}

func TestInvoiceRepositoryListByPeriod(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	now := time.Now()
	rows := invoiceDetailMockRows().
		AddRow("inv-1", "INV-2026-0001", "stu-1", "class-1", 3, 2026, 1500000.0, 100000.0, 1400000.0, models.InvoiceStatusUnpaid, now, now, now, now, "An Nguyen", "HS001", 10.0, "10A1").
		AddRow("inv-2", "INV-2026-0002", "stu-2", "class-1", 3, 2026, 1500000.0, 0.0, nil, models.InvoiceStatusPaid, now, now, now, now, "Binh Tran", "HS002", 0.0, "10A1")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.month = $1 AND i.year = $2 ORDER BY i.invoice_number ASC")).
		WithArgs(3, 2026).
		WillReturnRows(rows)

	invoices, err := repo.ListByPeriod(context.Background(), 3, 2026)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	require.Equal(t, 10.0, invoices[0].StudentDiscountPercentage)
	require.NotNil(t, invoices[0].FinalAmount)
	require.Nil(t, invoices[1].FinalAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateBatchRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	now := time.Now()
	invoices := []*models.Invoice{
		{InvoiceNumber: "INV-2026-0001", StudentID: "stu-1", ClassID: "class-1", Month: 3, Year: 2026, Amount: 1500000, Status: models.InvoiceStatusUnpaid, IssueDate: now, DueDate: now},
		{InvoiceNumber: "INV-2026-0002", StudentID: "stu-2", ClassID: "class-1", Month: 3, Year: 2026, Amount: 1500000, Status: models.InvoiceStatusUnpaid, IssueDate: now, DueDate: now},
	}
	err := repo.CreateBatch(context.Background(), invoices)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryMarkOverdue(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = 'OVERDUE', updated_at = $1 WHERE status = 'UNPAID' AND due_date < $1")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 3, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
