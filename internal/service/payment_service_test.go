package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

type mockPaymentRepo struct {
	payments map[string]*models.Payment
	pending  *models.Payment
	settled  []string
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	for _, p := range m.payments {
		if p.ReferenceNumber == reference {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindPendingByInvoice(ctx context.Context, invoiceID string) (*models.Payment, error) {
	if m.pending != nil && m.pending.InvoiceID == invoiceID {
		return m.pending, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var out []models.Payment
	for _, p := range m.payments {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.payments == nil {
		m.payments = make(map[string]*models.Payment)
	}
	payment.ID = "pay-1"
	m.payments[payment.ID] = payment
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	m.payments[id].Status = status
	return nil
}

func (m *mockPaymentRepo) CompleteAndMarkInvoicePaid(ctx context.Context, paymentID, invoiceID string) error {
	m.settled = append(m.settled, paymentID)
	m.payments[paymentID].Status = models.PaymentStatusCompleted
	return nil
}

type mockInvoiceReader struct {
	invoices map[string]*models.InvoiceDetail
}

func (m *mockInvoiceReader) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	if inv, ok := m.invoices[id]; ok {
		return inv, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuditWriter struct {
	logs []models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func unpaidInvoice(id string, amount float64) *models.InvoiceDetail {
	return &models.InvoiceDetail{Invoice: models.Invoice{
		ID:     id,
		Amount: amount,
		Status: models.InvoiceStatusUnpaid,
	}}
}

func TestReferenceNumberFormat(t *testing.T) {
	ts := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ref := ReferenceNumber("inv-abcdef123456", ts)

	require.Regexp(t, regexp.MustCompile(`^PAY-\d+-123456$`), ref)
	assert.True(t, strings.HasPrefix(ref, fmt.Sprintf("PAY-%d-", ts.UnixMilli())))
}

func TestReferenceNumberShortInvoiceID(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()
	ref := ReferenceNumber("abc", ts)
	assert.Equal(t, "PAY-1700000000000-abc", ref)
}

func TestMemoFromQRRoundtrip(t *testing.T) {
	assert.Equal(t, "PAY-1-xyz", MemoFromQR("https://img.vietqr.io/image/x.png?acc=1&des=PAY-1-xyz"))
	assert.Empty(t, MemoFromQR("https://img.vietqr.io/image/x.png?acc=1"))
	assert.Empty(t, MemoFromQR("://not-a-url"))
}

func TestCreatePaymentBuildsQRDescriptor(t *testing.T) {
	repo := &mockPaymentRepo{}
	invoices := &mockInvoiceReader{invoices: map[string]*models.InvoiceDetail{
		"inv-123456": unpaidInvoice("inv-123456", 1500000),
	}}
	svc := NewPaymentService(repo, invoices, &mockAuditWriter{}, nil, nil, PaymentConfig{
		BankAccount: "0123456789",
		BankName:    "ACB",
		QRBaseURL:   "https://img.vietqr.io/image/acb.png",
	})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000).UTC() }

	payment, err := svc.Create(context.Background(), CreatePaymentRequest{InvoiceID: "inv-123456"})
	require.NoError(t, err)

	assert.Equal(t, "PAY-1700000000000-123456", payment.ReferenceNumber)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, 1500000.0, payment.Amount)
	require.NotNil(t, payment.DataQR)
	// The memo embedded in the QR echoes the reference.
	assert.Equal(t, payment.ReferenceNumber, MemoFromQR(*payment.DataQR))
}

func TestCreatePaymentReusesPendingAttempt(t *testing.T) {
	pending := &models.Payment{ID: "pay-0", InvoiceID: "inv-1", ReferenceNumber: "PAY-1-inv-1", Status: models.PaymentStatusPending}
	repo := &mockPaymentRepo{pending: pending, payments: map[string]*models.Payment{"pay-0": pending}}
	invoices := &mockInvoiceReader{invoices: map[string]*models.InvoiceDetail{
		"inv-1": unpaidInvoice("inv-1", 100),
	}}
	svc := NewPaymentService(repo, invoices, &mockAuditWriter{}, nil, nil, PaymentConfig{})

	payment, err := svc.Create(context.Background(), CreatePaymentRequest{InvoiceID: "inv-1"})
	require.NoError(t, err)
	assert.Equal(t, "pay-0", payment.ID)
}

func TestCreatePaymentRejectsPaidInvoice(t *testing.T) {
	invoice := unpaidInvoice("inv-1", 100)
	invoice.Status = models.InvoiceStatusPaid
	svc := NewPaymentService(&mockPaymentRepo{}, &mockInvoiceReader{invoices: map[string]*models.InvoiceDetail{"inv-1": invoice}}, &mockAuditWriter{}, nil, nil, PaymentConfig{})

	_, err := svc.Create(context.Background(), CreatePaymentRequest{InvoiceID: "inv-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already paid")
}

func TestConfirmPaymentSettlesInvoiceAndAudits(t *testing.T) {
	payment := &models.Payment{ID: "pay-1", InvoiceID: "inv-1", ReferenceNumber: "PAY-9-inv-1", Status: models.PaymentStatusPending}
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{"pay-1": payment}}
	audits := &mockAuditWriter{}
	svc := NewPaymentService(repo, &mockInvoiceReader{}, audits, nil, nil, PaymentConfig{})

	confirmed, err := svc.Confirm(context.Background(), "PAY-9-inv-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, confirmed.Status)
	assert.Equal(t, []string{"pay-1"}, repo.settled)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionInvoicePaid, audits.logs[0].Action)
}

func TestConfirmPaymentIdempotentOnCompleted(t *testing.T) {
	payment := &models.Payment{ID: "pay-1", InvoiceID: "inv-1", ReferenceNumber: "PAY-9-inv-1", Status: models.PaymentStatusCompleted}
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{"pay-1": payment}}
	svc := NewPaymentService(repo, &mockInvoiceReader{}, &mockAuditWriter{}, nil, nil, PaymentConfig{})

	confirmed, err := svc.Confirm(context.Background(), "PAY-9-inv-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, confirmed.Status)
	assert.Empty(t, repo.settled)
}
