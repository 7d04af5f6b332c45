package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type fakeDashboardCache struct {
	entries map[string][]byte
}

func (f *fakeDashboardCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeDashboardCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if f.entries == nil {
		f.entries = map[string][]byte{}
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeDashboardCache) DeleteByPattern(context.Context, string) error { return nil }

type fakePeriodLister struct {
	invoices []models.InvoiceDetail
	calls    int
}

func (f *fakePeriodLister) ListByPeriod(context.Context, int, int) ([]models.InvoiceDetail, error) {
	f.calls++
	return f.invoices, nil
}

func newDashboardHandlerForTest(lister *fakePeriodLister) *DashboardHandler {
	dashboard := service.NewDashboardService(lister, &fakeDashboardCache{}, nil, service.DashboardServiceConfig{})
	return NewDashboardHandler(dashboard, service.NewMetricsService())
}

func TestDashboardHandlerFinancialRequiresPeriod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDashboardHandlerForTest(&fakePeriodLister{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/financial?year=2026", nil)

	handler.Financial(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerFinancialReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lister := &fakePeriodLister{}
	handler := newDashboardHandlerForTest(lister)

	target := "/dashboard/financial?month=3&year=2026"

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	handler.Financial(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var first scheduleEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, false, first.Meta["cache_hit"])

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	handler.Financial(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var second scheduleEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, true, second.Meta["cache_hit"])
	assert.Equal(t, 1, lister.calls)
}
