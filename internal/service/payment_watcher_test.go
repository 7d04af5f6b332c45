package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

// flippableInvoiceReader lets a test flip the invoice to PAID mid-poll and
// inject transient lookup failures.
type flippableInvoiceReader struct {
	mu      sync.Mutex
	invoice *models.InvoiceDetail
	failFor int
	lookups int
}

func (m *flippableInvoiceReader) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failFor > 0 {
		m.failFor--
		return nil, errors.New("backend unavailable")
	}
	if m.invoice == nil || m.invoice.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *m.invoice
	return &copied, nil
}

func (m *flippableInvoiceReader) failNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor = n
}

func (m *flippableInvoiceReader) markPaid() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoice.Status = models.InvoiceStatusPaid
}

func (m *flippableInvoiceReader) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

func newTestWatcher(t *testing.T, reader *flippableInvoiceReader) *PaymentWatcher {
	t.Helper()
	payments := NewPaymentService(&mockPaymentRepo{}, reader, &mockAuditWriter{}, nil, nil, PaymentConfig{})
	return NewPaymentWatcher(payments, reader, nil, WatcherConfig{
		PollInitial:   5 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		SuccessLinger: 5 * time.Millisecond,
	})
}

func TestWatcherStartsInConfirm(t *testing.T) {
	watcher := newTestWatcher(t, &flippableInvoiceReader{})
	assert.Equal(t, WatcherStateConfirm, watcher.State())
	assert.Nil(t, watcher.Payment())
	assert.False(t, watcher.ShouldStayOpen())
}

func TestWatcherConfirmMovesToQR(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	payment, err := watcher.Confirm(context.Background(), "inv-1")
	require.NoError(t, err)
	require.NotNil(t, payment)

	assert.Equal(t, WatcherStateQR, watcher.State())
	assert.True(t, watcher.ShouldStayOpen())
	assert.True(t, watcher.Close(true))
}

func TestWatcherRefusesDoubleConfirm(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	_, err := watcher.Confirm(context.Background(), "inv-1")
	require.NoError(t, err)
	defer watcher.Close(true)

	_, err = watcher.Confirm(context.Background(), "inv-1")
	require.Error(t, err)
}

func TestWatcherSettlesWhenInvoicePaid(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	var paidInvoice string
	watcher.OnPaid(func(invoiceID string) { paidInvoice = invoiceID })

	_, err := watcher.Confirm(context.Background(), "inv-1")
	require.NoError(t, err)

	reader.markPaid()

	select {
	case <-watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not settle")
	}

	assert.Equal(t, "inv-1", paidInvoice)
	// Success linger elapsed and the watcher reset for the next attempt.
	assert.Equal(t, WatcherStateConfirm, watcher.State())
	assert.Nil(t, watcher.Payment())
}

func TestWatcherKeepsPollingThroughLookupErrors(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	_, err := watcher.Confirm(context.Background(), "inv-1")
	require.NoError(t, err)

	// Break the next lookups only once polling is the sole reader.
	reader.failNext(3)
	reader.markPaid()

	select {
	case <-watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher gave up after transient errors")
	}
	assert.GreaterOrEqual(t, reader.lookupCount(), 4)
}

func TestWatcherReportsPollIterations(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	var polls atomic.Int64
	watcher.OnPoll(func() { polls.Add(1) })

	_, err := watcher.Confirm(context.Background(), "inv-1")
	require.NoError(t, err)

	reader.markPaid()
	select {
	case <-watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not settle")
	}
	assert.Positive(t, polls.Load())
}

func TestWatcherCloseRefusedWhilePolling(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	_, err := watcher.Confirm(context.Background(), "inv-1")
	require.NoError(t, err)

	assert.False(t, watcher.Close(false))
	assert.Equal(t, WatcherStateQR, watcher.State())

	require.True(t, watcher.Close(true))
	assert.Equal(t, WatcherStateConfirm, watcher.State())

	select {
	case <-watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not exit after forced close")
	}
}

func TestWatcherPollSurvivesCallerContextCancel(t *testing.T) {
	reader := &flippableInvoiceReader{invoice: unpaidInvoice("inv-1", 100)}
	watcher := newTestWatcher(t, reader)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := watcher.Confirm(ctx, "inv-1")
	require.NoError(t, err)

	// The request context ending must not stop the poll loop.
	cancel()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, WatcherStateQR, watcher.State())

	reader.markPaid()
	select {
	case <-watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not settle after caller context cancel")
	}
}
