package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
)

type fakeScheduleRepo struct {
	existing []models.Schedule
	created  []models.Schedule
}

func (f *fakeScheduleRepo) FindByID(context.Context, string) (*models.Schedule, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) List(context.Context, models.ScheduleFilter) ([]models.Schedule, int, error) {
	return f.existing, len(f.existing), nil
}

func (f *fakeScheduleRepo) FindOverlapping(_ context.Context, schedule *models.Schedule, excludeID string) ([]models.Schedule, error) {
	var overlaps []models.Schedule
	for _, other := range f.existing {
		if other.ID == excludeID || other.DayOfWeek != schedule.DayOfWeek {
			continue
		}
		if other.Room != schedule.Room {
			continue
		}
		if schedule.StartTime < other.EndTime && other.StartTime < schedule.EndTime {
			overlaps = append(overlaps, other)
		}
	}
	return overlaps, nil
}

func (f *fakeScheduleRepo) Create(_ context.Context, schedule *models.Schedule) error {
	f.created = append(f.created, *schedule)
	return nil
}

func (f *fakeScheduleRepo) Update(context.Context, *models.Schedule) error { return nil }
func (f *fakeScheduleRepo) Delete(context.Context, string) error          { return nil }

type fakeClassDetailReader struct{}

func (fakeClassDetailReader) FindByID(_ context.Context, id string) (*models.ClassDetail, error) {
	detail := &models.ClassDetail{}
	detail.ID = id
	return detail, nil
}

type scheduleEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newScheduleHandlerForTest(repo *fakeScheduleRepo) *ScheduleHandler {
	svc := service.NewScheduleService(repo, fakeClassDetailReader{}, nil, nil)
	return NewScheduleHandler(svc)
}

func TestScheduleHandlerCreateConflictReturns409(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeScheduleRepo{existing: []models.Schedule{{
		ID:        "sch-1",
		ClassID:   "cls-1",
		DayOfWeek: "monday",
		StartTime: "08:00",
		EndTime:   "09:30",
		Room:      "A101",
	}}}
	handler := newScheduleHandlerForTest(repo)

	body := `{"class_id":"cls-2","day_of_week":"monday","start_time":"09:00","end_time":"10:00","room":"A101"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope scheduleEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "SCHEDULE_OVERLAP", envelope.Error["code"])
	conflicts, ok := envelope.Meta["conflicts"].([]interface{})
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	first := conflicts[0].(map[string]interface{})
	assert.Equal(t, "sch-1", first["schedule_id"])
	assert.Empty(t, repo.created)
}

func TestScheduleHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeScheduleRepo{}
	handler := newScheduleHandlerForTest(repo)

	body := `{"class_id":"cls-1","day_of_week":"tuesday","start_time":"08:00","end_time":"09:00","room":"B201"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "B201", repo.created[0].Room)
}

func TestScheduleHandlerCreateRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(&fakeScheduleRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
