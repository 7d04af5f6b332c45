package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryFindPendingByInvoice(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "invoice_id", "amount", "payment_date", "reference_number", "status", "data_qr", "created_at", "updated_at"}).
		AddRow("pay-1", "inv-1", 1400000.0, time.Now(), "PAY-1759999999999-abc123", models.PaymentStatusPending, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE invoice_id = $1 AND status = 'PENDING' ORDER BY created_at DESC LIMIT 1")).
		WithArgs("inv-1").
		WillReturnRows(rows)

	payment, err := repo.FindPendingByInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Equal(t, "PAY-1759999999999-abc123", payment.ReferenceNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindPendingByInvoiceNone(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE invoice_id = $1 AND status = 'PENDING'")).
		WithArgs("inv-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindPendingByInvoice(context.Background(), "inv-9")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCompleteAndMarkInvoicePaid(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = 'COMPLETED', payment_date = $2, updated_at = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = 'PAID', updated_at = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CompleteAndMarkInvoicePaid(context.Background(), "pay-1", "inv-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
