package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type memoryCache struct {
	entries map[string][]byte
	sets    int
	deletes []string
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

type stubPeriodLister struct {
	invoices []models.InvoiceDetail
	calls    int
}

func (s *stubPeriodLister) ListByPeriod(ctx context.Context, month, year int) ([]models.InvoiceDetail, error) {
	s.calls++
	return s.invoices, nil
}

func TestFinancialDashboardCachesSummary(t *testing.T) {
	lister := &stubPeriodLister{invoices: []models.InvoiceDetail{
		invoiceWith(1000, 0, nil, models.InvoiceStatusUnpaid),
	}}
	cache := &memoryCache{}
	svc := NewDashboardService(lister, cache, nil, DashboardServiceConfig{CacheTTL: time.Minute})

	summary, hit, err := svc.Financial(context.Background(), 3, 2026, "")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1000.0, summary.ExpectedIncome)
	assert.Equal(t, 1, lister.calls)

	cached, hit, err := svc.Financial(context.Background(), 3, 2026, "")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, summary.ExpectedIncome, cached.ExpectedIncome)
	assert.Equal(t, 1, lister.calls)
}

func TestFinancialDashboardScopesByClass(t *testing.T) {
	inv1 := invoiceWith(1000, 0, nil, models.InvoiceStatusUnpaid)
	inv1.ClassID = "cls-1"
	inv2 := invoiceWith(500, 0, nil, models.InvoiceStatusUnpaid)
	inv2.ClassID = "cls-2"
	lister := &stubPeriodLister{invoices: []models.InvoiceDetail{inv1, inv2}}
	svc := NewDashboardService(lister, &memoryCache{}, nil, DashboardServiceConfig{})

	summary, _, err := svc.Financial(context.Background(), 3, 2026, "cls-2")
	require.NoError(t, err)
	assert.Equal(t, 500.0, summary.ExpectedIncome)
}

func TestFinancialDashboardValidatesPeriod(t *testing.T) {
	svc := NewDashboardService(&stubPeriodLister{}, &memoryCache{}, nil, DashboardServiceConfig{})

	_, _, err := svc.Financial(context.Background(), 13, 2026, "")
	require.Error(t, err)
	_, _, err = svc.Financial(context.Background(), 0, 2026, "")
	require.Error(t, err)
}

func TestInvalidateFinancialDropsCachedSummaries(t *testing.T) {
	lister := &stubPeriodLister{}
	cache := &memoryCache{}
	svc := NewDashboardService(lister, cache, nil, DashboardServiceConfig{})

	_, _, err := svc.Financial(context.Background(), 3, 2026, "")
	require.NoError(t, err)

	svc.InvalidateFinancial(context.Background(), 3, 2026)
	require.Len(t, cache.deletes, 1)
	assert.Equal(t, "dash:financial:2026:03:*", cache.deletes[0])

	_, hit, err := svc.Financial(context.Background(), 3, 2026, "")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, lister.calls)
}
