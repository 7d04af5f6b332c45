package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/truonghoc-dev/truonghoc-api/api/swagger"
	"github.com/truonghoc-dev/truonghoc-api/internal/handler"
	"github.com/truonghoc-dev/truonghoc-api/internal/repository"
	"github.com/truonghoc-dev/truonghoc-api/internal/router"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	"github.com/truonghoc-dev/truonghoc-api/pkg/cache"
	"github.com/truonghoc-dev/truonghoc-api/pkg/config"
	"github.com/truonghoc-dev/truonghoc-api/pkg/database"
	"github.com/truonghoc-dev/truonghoc-api/pkg/logger"
	"github.com/truonghoc-dev/truonghoc-api/pkg/storage"
)

// @title Truong Hoc API
// @version 1.0.0
// @description School management API: academics, enrollment, billing and attendance
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	sessionRepo := repository.NewClassSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "truonghoc-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	yearSvc := service.NewAcademicYearService(yearRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, yearRepo, teacherRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, guardianRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	guardianSvc := service.NewGuardianService(guardianRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, classRepo, validate, logr)
	sessionSvc := service.NewClassSessionService(sessionRepo, classRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, enrollmentRepo, validate, logr)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, enrollmentRepo, classRepo, userRepo, validate, logr, service.InvoiceServiceConfig{
		NumberPrefix:     cfg.Invoices.NumberPrefix,
		DefaultDueInDays: cfg.Invoices.DefaultDueInDays,
	})
	paymentSvc := service.NewPaymentService(paymentRepo, invoiceRepo, userRepo, validate, logr, service.PaymentConfig{
		BankAccount: cfg.Payments.BankAccount,
		BankName:    cfg.Payments.BankName,
		QRBaseURL:   cfg.Payments.QRBaseURL,
	})
	dashboardSvc := service.NewDashboardService(invoiceRepo, cacheRepo, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	exportSvc := service.NewExportService(exportRepo, invoiceRepo, attendanceSvc, exportStore, exportSigner, validate, metricsSvc, logr, service.ExportServiceConfig{
		Workers: cfg.Exports.WorkerConcurrency,
		Retries: cfg.Exports.WorkerRetries,
	})

	newWatcher := func() *service.PaymentWatcher {
		w := service.NewPaymentWatcher(paymentSvc, invoiceRepo, logr, service.WatcherConfig{
			PollInitial:   cfg.Payments.PollInitial,
			PollInterval:  cfg.Payments.PollInterval,
			SuccessLinger: cfg.Payments.SuccessLinger,
		})
		w.OnPoll(metricsSvc.RecordPaymentPoll)
		return w
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Exports.Enabled {
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	if cfg.Invoices.OverdueSweep {
		sweeper := service.NewOverdueSweeper(invoiceRepo, dashboardSvc, cfg.Invoices.OverdueCronSpec, logr)
		if err := sweeper.Start(); err != nil {
			logr.Sugar().Fatalw("failed to start overdue sweeper", "error", err)
		}
		defer sweeper.Stop()
	}

	if cfg.Exports.CleanupInterval > 0 {
		go cleanupExports(ctx, exportStore, cfg.Exports.CleanupInterval, cfg.Exports.SignedURLTTL, logr)
	}

	handlers := router.Handlers{
		Auth:         handler.NewAuthHandler(authSvc, userSvc),
		Users:        handler.NewUserHandler(userSvc),
		AcademicYear: handler.NewAcademicYearHandler(yearSvc),
		Classes:      handler.NewClassHandler(classSvc),
		Students:     handler.NewStudentHandler(studentSvc),
		Teachers:     handler.NewTeacherHandler(teacherSvc),
		Guardians:    handler.NewGuardianHandler(guardianSvc),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Schedules:    handler.NewScheduleHandler(scheduleSvc),
		Sessions:     handler.NewClassSessionHandler(sessionSvc),
		Attendance:   handler.NewAttendanceHandler(attendanceSvc),
		Invoices:     handler.NewInvoiceHandler(invoiceSvc, dashboardSvc),
		Payments:     handler.NewPaymentHandler(paymentSvc, dashboardSvc, metricsSvc, newWatcher, logr),
		Exports:      handler.NewExportHandler(exportSvc, exportSigner, exportStore),
		Uploads:      handler.NewUploadHandler(uploadStore, uploadSigner, cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs),
		Dashboard:    handler.NewDashboardHandler(dashboardSvc, metricsSvc),
	}

	engine := router.New(cfg, logr, authSvc, metricsSvc, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// cleanupExports periodically removes export artifacts whose signed URLs
// have expired.
func cleanupExports(ctx context.Context, store *storage.LocalStorage, interval, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(ttl)
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("removed expired export artifacts", "count", len(removed))
			}
		}
	}
}
