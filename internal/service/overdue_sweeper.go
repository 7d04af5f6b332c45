package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type overdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type financialInvalidator interface {
	InvalidateFinancial(ctx context.Context, month, year int)
}

// OverdueSweeper periodically flips UNPAID invoices past their due date to
// OVERDUE.
type OverdueSweeper struct {
	invoices  overdueMarker
	dashboard financialInvalidator
	logger    *zap.Logger
	spec      string
	runner    *cron.Cron
	now       func() time.Time
}

// NewOverdueSweeper constructs a sweeper on the given cron spec. An empty
// spec falls back to a nightly run.
func NewOverdueSweeper(invoices overdueMarker, dashboard financialInvalidator, spec string, logger *zap.Logger) *OverdueSweeper {
	if spec == "" {
		spec = "0 1 * * *"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{
		invoices:  invoices,
		dashboard: dashboard,
		logger:    logger,
		spec:      spec,
		now:       time.Now,
	}
}

// Start schedules the sweep. Overlapping runs are skipped.
func (s *OverdueSweeper) Start() error {
	s.runner = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := s.runner.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("overdue sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", s.spec, err)
	}
	s.runner.Start()
	s.logger.Info("overdue sweeper started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *OverdueSweeper) Stop() {
	if s.runner == nil {
		return
	}
	<-s.runner.Stop().Done()
}

// Sweep marks overdue invoices once and invalidates the dashboard cache for
// the current billing month.
func (s *OverdueSweeper) Sweep(ctx context.Context) (int64, error) {
	asOf := s.now().UTC()
	marked, err := s.invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	if marked > 0 {
		s.logger.Info("invoices marked overdue", zap.Int64("count", marked))
		if s.dashboard != nil {
			s.dashboard.InvalidateFinancial(ctx, int(asOf.Month()), asOf.Year())
		}
	}
	return marked, nil
}
