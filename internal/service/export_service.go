package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/pkg/export"
	"github.com/truonghoc-dev/truonghoc-api/pkg/jobs"
	"github.com/truonghoc-dev/truonghoc-api/pkg/storage"
)

type exportRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
	Create(ctx context.Context, job *models.ExportJob) error
	UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error
	MarkFinished(ctx context.Context, id, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type invoicePeriodReader interface {
	ListByPeriod(ctx context.Context, month, year int) ([]models.InvoiceDetail, error)
	FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
}

// CreateExportRequest enqueues an asynchronous export job.
type CreateExportRequest struct {
	Type   models.ExportType      `json:"type" validate:"required,oneof=invoices rollcall receipt"`
	Format models.ExportFormat    `json:"format" validate:"required,oneof=csv xlsx pdf"`
	Params models.ExportJobParams `json:"params"`
}

// ExportServiceConfig sizes the export worker pool.
type ExportServiceConfig struct {
	Workers int
	Retries int
}

// ExportService renders invoice and roll-call exports through a background
// worker queue and serves the artifacts via signed URLs.
type ExportService struct {
	repo       exportRepository
	invoices   invoicePeriodReader
	attendance *AttendanceService
	storage    *storage.LocalStorage
	signer     *storage.SignedURLSigner
	queue      *jobs.Queue
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	retries    int
	csv        *export.CSVExporter
	xlsx       *export.XLSXExporter
	pdf        *export.PDFExporter
}

// NewExportService constructs ExportService and its worker queue. Call
// Start before enqueueing and Stop on shutdown.
func NewExportService(repo exportRepository, invoices invoicePeriodReader, attendance *AttendanceService, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 2
	}
	s := &ExportService{
		repo:       repo,
		invoices:   invoices,
		attendance: attendance,
		storage:    store,
		signer:     signer,
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
		retries:    cfg.Retries,
		csv:        export.NewCSVExporter(),
		xlsx:       export.NewXLSXExporter(),
		pdf:        export.NewPDFExporter(),
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and shuts down the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue persists a QUEUED job and hands it to the worker pool.
func (s *ExportService) Enqueue(ctx context.Context, userID string, req CreateExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid export payload")
	}
	req.Params.Format = req.Format

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Params:    req.Params,
		Status:    models.ExportStatusQueued,
		CreatedBy: userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, internalErr(err, "failed to persist export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "export queue unavailable"); markErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.Error(markErr))
		}
		s.metrics.RecordExportOutcome("failed")
		return nil, internalErr(err, "export queue is full")
	}
	return job, nil
}

// Get returns the job metadata, including the signed artifact URL once
// finished.
func (s *ExportService) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("export job not found")
		}
		return nil, internalErr(err, "failed to load export job")
	}
	return job, nil
}

// ListByUser returns the caller's recent export jobs.
func (s *ExportService) ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	exports, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, internalErr(err, "failed to list export jobs")
	}
	return exports, nil
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	job, ok := queued.Payload.(*models.ExportJob)
	if !ok {
		return fmt.Errorf("unexpected export payload type %T", queued.Payload)
	}

	if err := s.repo.UpdateProgress(ctx, job.ID, models.ExportStatusProcessing, 10); err != nil {
		s.logger.Warn("failed to update export progress", zap.Error(err))
	}

	payload, filename, err := s.render(ctx, job)
	if err != nil {
		s.fail(ctx, queued.Attempt, job.ID, err.Error())
		return err
	}

	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(ctx, queued.Attempt, job.ID, "failed to store artifact")
		return fmt.Errorf("store export artifact: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(ctx, queued.Attempt, job.ID, "failed to sign artifact")
		return fmt.Errorf("sign export artifact: %w", err)
	}
	resultURL := fmt.Sprintf("/api/v1/exports/%s/download?token=%s", job.ID, token)

	if err := s.repo.MarkFinished(ctx, job.ID, resultURL); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	s.metrics.RecordExportOutcome("completed")
	return nil
}

// fail marks the job FAILED only once the queue will not retry it, so a
// retry that later succeeds cannot land on top of a failed row.
func (s *ExportService) fail(ctx context.Context, attempt int, jobID, message string) {
	if attempt < s.retries {
		return
	}
	if err := s.repo.MarkFailed(ctx, jobID, message); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.Error(err))
	}
	s.metrics.RecordExportOutcome("failed")
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	switch job.Type {
	case models.ExportTypeInvoices:
		return s.renderInvoices(ctx, job)
	case models.ExportTypeRollCall:
		return s.renderRollCall(ctx, job)
	case models.ExportTypeReceipt:
		return s.renderReceipt(ctx, job)
	default:
		return nil, "", fmt.Errorf("unsupported export type %q", job.Type)
	}
}

func (s *ExportService) renderInvoices(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	invoices, err := s.invoices.ListByPeriod(ctx, job.Params.Month, job.Params.Year)
	if err != nil {
		return nil, "", fmt.Errorf("load invoices: %w", err)
	}
	if job.Params.ClassID != nil {
		filtered := invoices[:0]
		for _, invoice := range invoices {
			if invoice.ClassID == *job.Params.ClassID {
				filtered = append(filtered, invoice)
			}
		}
		invoices = filtered
	}

	data := export.Dataset{
		Headers: []string{"invoice_number", "student_code", "student_name", "class", "amount", "discount", "final_amount", "status", "due_date"},
		Rows:    make([]map[string]string, 0, len(invoices)),
	}
	for _, invoice := range invoices {
		data.Rows = append(data.Rows, map[string]string{
			"invoice_number": invoice.InvoiceNumber,
			"student_code":   invoice.StudentCode,
			"student_name":   invoice.StudentName,
			"class":          invoice.ClassName,
			"amount":         fmt.Sprintf("%.2f", invoice.Amount),
			"discount":       fmt.Sprintf("%.2f", invoice.DiscountAmount),
			"final_amount":   fmt.Sprintf("%.2f", invoice.EffectiveAmount()),
			"status":         string(invoice.Status),
			"due_date":       invoice.DueDate.Format("2006-01-02"),
		})
	}

	base := fmt.Sprintf("invoices-%d-%02d-%s", job.Params.Year, job.Params.Month, job.ID[:8])
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err := s.csv.Render(data)
		return payload, base + ".csv", err
	case models.ExportFormatXLSX:
		payload, err := s.xlsx.Render(data, "Invoices")
		return payload, base + ".xlsx", err
	case models.ExportFormatPDF:
		payload, err := s.pdf.Render(data, fmt.Sprintf("Invoices %02d/%d", job.Params.Month, job.Params.Year))
		return payload, base + ".pdf", err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", job.Params.Format)
	}
}

func (s *ExportService) renderRollCall(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	if job.Params.SessionID == nil {
		return nil, "", fmt.Errorf("rollcall export requires a session id")
	}
	format := job.Params.Format
	if format == models.ExportFormatPDF {
		return nil, "", fmt.Errorf("rollcall export supports csv and xlsx only")
	}
	payload, _, err := s.attendance.ExportRollCall(ctx, *job.Params.SessionID, format)
	if err != nil {
		return nil, "", fmt.Errorf("render rollcall: %w", err)
	}
	return payload, fmt.Sprintf("rollcall-%s.%s", *job.Params.SessionID, format), nil
}

func (s *ExportService) renderReceipt(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	if job.Params.InvoiceID == nil {
		return nil, "", fmt.Errorf("receipt export requires an invoice id")
	}
	invoice, err := s.invoices.FindByID(ctx, *job.Params.InvoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("load invoice: %w", err)
	}

	lines := [][2]string{
		{"Invoice", invoice.InvoiceNumber},
		{"Student", fmt.Sprintf("%s (%s)", invoice.StudentName, invoice.StudentCode)},
		{"Class", invoice.ClassName},
		{"Period", fmt.Sprintf("%02d/%d", invoice.Month, invoice.Year)},
		{"Amount", fmt.Sprintf("%.2f", invoice.Amount)},
		{"Discount", fmt.Sprintf("%.2f", invoice.DiscountAmount)},
		{"Total due", fmt.Sprintf("%.2f", invoice.EffectiveAmount())},
		{"Status", string(invoice.Status)},
	}
	payload, err := s.pdf.RenderReceipt("Tuition Receipt", lines)
	if err != nil {
		return nil, "", fmt.Errorf("render receipt: %w", err)
	}
	return payload, fmt.Sprintf("receipt-%s.pdf", invoice.InvoiceNumber), nil
}
