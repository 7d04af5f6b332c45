package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type periodInvoiceLister interface {
	ListByPeriod(ctx context.Context, month, year int) ([]models.InvoiceDetail, error)
}

// DashboardServiceConfig tunes dashboard caching.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the admin financial dashboard and caches the
// result per billing period.
type DashboardService struct {
	invoices periodInvoiceLister
	cache    dashboardCache
	logger   *zap.Logger
	cfg      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(invoices periodInvoiceLister, cache dashboardCache, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{invoices: invoices, cache: cache, logger: logger, cfg: cfg}
}

// Financial returns the financial summary for a billing month and indicates
// cache utilisation. An optional class id narrows the scope.
func (s *DashboardService) Financial(ctx context.Context, month, year int, classID string) (*models.FinancialSummary, bool, error) {
	if month < 1 || month > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 2000 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "year is required")
	}

	cacheKey := financialCacheKey(month, year, classID)
	if summary, hit := s.tryCache(ctx, cacheKey); hit {
		return summary, true, nil
	}

	invoices, err := s.invoices.ListByPeriod(ctx, month, year)
	if err != nil {
		return nil, false, internalErr(err, "failed to load invoices for dashboard")
	}
	if classID != "" {
		scoped := invoices[:0]
		for _, invoice := range invoices {
			if invoice.ClassID == classID {
				scoped = append(scoped, invoice)
			}
		}
		invoices = scoped
	}

	summary := BuildFinancialSummary(invoices)
	s.persistCache(ctx, cacheKey, summary)
	return &summary, false, nil
}

// InvalidateFinancial drops every cached summary for a billing month. Called
// after invoice and payment mutations.
func (s *DashboardService) InvalidateFinancial(ctx context.Context, month, year int) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("dash:financial:%d:%02d:*", year, month)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func (s *DashboardService) tryCache(ctx context.Context, key string) (*models.FinancialSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached models.FinancialSummary
	if err := s.cache.Get(ctx, key, &cached); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func financialCacheKey(month, year int, classID string) string {
	if classID == "" {
		classID = "all"
	}
	return fmt.Sprintf("dash:financial:%d:%02d:%s", year, month, classID)
}
