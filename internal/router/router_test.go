package router

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	"github.com/truonghoc-dev/truonghoc-api/pkg/config"
)

type stubAuthRepo struct{}

func (stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (stubAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (stubAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error { return nil }

func (stubAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (stubAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error { return nil }

func (stubAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return nil
}

func (stubAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return nil, sql.ErrNoRows
}

func (stubAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

func (stubAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error { return nil }

func newTestRouter(t *testing.T, dashboardEnabled bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Dashboard: config.DashboardConfig{Enabled: dashboardEnabled},
	}
	auth := service.NewAuthService(stubAuthRepo{}, nil, nil, service.AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Minute,
	})
	return New(cfg, zap.NewNop(), auth, service.NewMetricsService(), Handlers{})
}

func TestDashboardRouteNotMountedWhenDisabled(t *testing.T) {
	r := newTestRouter(t, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/financial", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardRouteMountedWhenEnabled(t *testing.T) {
	r := newTestRouter(t, true)

	// Unauthenticated, so the JWT middleware answers. A 401 proves the
	// route is registered, a 404 would mean it is not.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/financial", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
