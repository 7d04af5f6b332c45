package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/pkg/jobs"
	"github.com/truonghoc-dev/truonghoc-api/pkg/storage"
)

// recordingExportRepo captures status transitions so tests can assert how
// a job ends up, not just that it ended.
type recordingExportRepo struct {
	mu       sync.Mutex
	failed   []string
	finished []string
}

func (m *recordingExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	return nil, sql.ErrNoRows
}

func (m *recordingExportRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

func (m *recordingExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	return nil
}

func (m *recordingExportRepo) UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error {
	return nil
}

func (m *recordingExportRepo) MarkFinished(ctx context.Context, id, resultURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, resultURL)
	return nil
}

func (m *recordingExportRepo) MarkFailed(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, message)
	return nil
}

func (m *recordingExportRepo) failedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failed)
}

func (m *recordingExportRepo) finishedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.finished...)
}

type stubPeriodInvoices struct {
	mu       sync.Mutex
	invoices []models.InvoiceDetail
	err      error
}

func (m *stubPeriodInvoices) ListByPeriod(ctx context.Context, month, year int) ([]models.InvoiceDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.invoices, nil
}

func (m *stubPeriodInvoices) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	return nil, sql.ErrNoRows
}

func (m *stubPeriodInvoices) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestExportService(t *testing.T, invoices *stubPeriodInvoices, repo *recordingExportRepo, metrics *MetricsService) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(repo, invoices, nil, store, signer, nil, metrics, nil, ExportServiceConfig{
		Workers: 1,
		Retries: 2,
	})
}

func invoicesExportJob() *models.ExportJob {
	return &models.ExportJob{
		ID:   "11112222-3333-4444-5555-666677778888",
		Type: models.ExportTypeInvoices,
		Params: models.ExportJobParams{
			Month:  3,
			Year:   2026,
			Format: models.ExportFormatCSV,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: "user-1",
		CreatedAt: time.Now().UTC(),
	}
}

func TestExportSuccessMarksFinishedWithSignedURL(t *testing.T) {
	repo := &recordingExportRepo{}
	invoices := &stubPeriodInvoices{invoices: []models.InvoiceDetail{*unpaidInvoice("inv-1", 100)}}
	metrics := NewMetricsService()
	svc := newTestExportService(t, invoices, repo, metrics)

	err := svc.process(context.Background(), jobs.Job{ID: "j1", Payload: invoicesExportJob()})
	require.NoError(t, err)

	urls := repo.finishedURLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "/download?token=")
	assert.Zero(t, repo.failedCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.exportsFinished.WithLabelValues("completed")))
}

func TestExportFailureNotMarkedWhileRetriesRemain(t *testing.T) {
	repo := &recordingExportRepo{}
	invoices := &stubPeriodInvoices{err: errors.New("backend unavailable")}
	svc := newTestExportService(t, invoices, repo, nil)

	for attempt := 0; attempt < 2; attempt++ {
		err := svc.process(context.Background(), jobs.Job{ID: "j1", Payload: invoicesExportJob(), Attempt: attempt})
		require.Error(t, err)
	}
	assert.Zero(t, repo.failedCount())
}

func TestExportFailureMarkedOnFinalAttempt(t *testing.T) {
	repo := &recordingExportRepo{}
	invoices := &stubPeriodInvoices{err: errors.New("backend unavailable")}
	metrics := NewMetricsService()
	svc := newTestExportService(t, invoices, repo, metrics)

	err := svc.process(context.Background(), jobs.Job{ID: "j1", Payload: invoicesExportJob(), Attempt: 2})
	require.Error(t, err)

	assert.Equal(t, 1, repo.failedCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.exportsFinished.WithLabelValues("failed")))
}

func TestExportRetryAfterTransientErrorFinishesCleanly(t *testing.T) {
	repo := &recordingExportRepo{}
	invoices := &stubPeriodInvoices{err: errors.New("backend unavailable")}
	svc := newTestExportService(t, invoices, repo, nil)

	job := invoicesExportJob()
	err := svc.process(context.Background(), jobs.Job{ID: "j1", Payload: job})
	require.Error(t, err)

	invoices.setErr(nil)
	err = svc.process(context.Background(), jobs.Job{ID: "j1", Payload: job, Attempt: 1})
	require.NoError(t, err)

	// The transient failure must never have produced a FAILED row that the
	// successful retry then overwrote.
	assert.Zero(t, repo.failedCount())
	assert.Len(t, repo.finishedURLs(), 1)
}
