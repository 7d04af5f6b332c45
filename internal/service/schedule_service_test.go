package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

type mockScheduleRepo struct {
	existing []models.Schedule
	created  []models.Schedule
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	for _, s := range m.existing {
		if s.ID == id {
			copied := s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	return m.existing, len(m.existing), nil
}

func (m *mockScheduleRepo) FindOverlapping(ctx context.Context, schedule *models.Schedule, excludeID string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range m.existing {
		if s.ID == excludeID {
			continue
		}
		if overlapsWithin(schedule, &s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	m.created = append(m.created, *schedule)
	return nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error { return nil }

func (m *mockScheduleRepo) Delete(ctx context.Context, id string) error { return nil }

func slot(classID, day, start, end, room string) ScheduleRequest {
	return ScheduleRequest{ClassID: classID, DayOfWeek: day, StartTime: start, EndTime: end, Room: room}
}

func scheduleClasses(ids ...string) *mockClassReader {
	classes := make(map[string]*models.ClassDetail, len(ids))
	for _, id := range ids {
		classes[id] = openClass(id, 100, 30, 0)
	}
	return &mockClassReader{classes: classes}
}

func TestCreateScheduleRejectsRoomOverlap(t *testing.T) {
	repo := &mockScheduleRepo{existing: []models.Schedule{
		{ID: "sch-1", ClassID: "cls-1", DayOfWeek: "monday", StartTime: "08:00", EndTime: "09:30", Room: "A1"},
	}}
	svc := NewScheduleService(repo, scheduleClasses("cls-2"), nil, nil)

	_, err := svc.Create(context.Background(), slot("cls-2", "monday", "09:00", "10:30", "A1"))
	require.Error(t, err)

	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "room", conflict.Conflicts[0].Dimension)
	assert.Equal(t, "sch-1", conflict.Conflicts[0].ScheduleID)
}

func TestCreateScheduleAllowsAdjacentSlots(t *testing.T) {
	repo := &mockScheduleRepo{existing: []models.Schedule{
		{ID: "sch-1", ClassID: "cls-1", DayOfWeek: "monday", StartTime: "08:00", EndTime: "09:30", Room: "A1"},
	}}
	svc := NewScheduleService(repo, scheduleClasses("cls-1"), nil, nil)

	// Back to back in the same room is not an overlap.
	created, err := svc.Create(context.Background(), slot("cls-1", "monday", "09:30", "11:00", "A1"))
	require.NoError(t, err)
	assert.Equal(t, "09:30", created.StartTime)
	require.Len(t, repo.created, 1)
}

func TestCreateScheduleDifferentDayNoConflict(t *testing.T) {
	repo := &mockScheduleRepo{existing: []models.Schedule{
		{ID: "sch-1", ClassID: "cls-1", DayOfWeek: "monday", StartTime: "08:00", EndTime: "09:30", Room: "A1"},
	}}
	svc := NewScheduleService(repo, scheduleClasses("cls-1"), nil, nil)

	_, err := svc.Create(context.Background(), slot("cls-1", "tuesday", "08:00", "09:30", "A1"))
	require.NoError(t, err)
}

func TestCreateScheduleValidatesTimeOrder(t *testing.T) {
	svc := NewScheduleService(&mockScheduleRepo{}, scheduleClasses("cls-1"), nil, nil)

	_, err := svc.Create(context.Background(), slot("cls-1", "monday", "10:00", "09:00", "A1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end time")
}

func TestCreateBatchRejectsIntraBatchOverlap(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := NewScheduleService(repo, scheduleClasses("cls-1"), nil, nil)

	_, err := svc.CreateBatch(context.Background(), []ScheduleRequest{
		slot("cls-1", "monday", "08:00", "09:30", "A1"),
		slot("cls-1", "monday", "09:00", "10:30", "A2"),
	})
	require.Error(t, err)

	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	// Nothing persisted when any slot conflicts.
	assert.Empty(t, repo.created)
}

func TestCreateBatchPersistsAllWhenClean(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := NewScheduleService(repo, scheduleClasses("cls-1", "cls-2"), nil, nil)

	created, err := svc.CreateBatch(context.Background(), []ScheduleRequest{
		slot("cls-1", "monday", "08:00", "09:30", "A1"),
		slot("cls-2", "monday", "08:00", "09:30", "A2"),
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, repo.created, 2)
}

func TestTeacherOverlapDetected(t *testing.T) {
	teacher := "tch-1"
	repo := &mockScheduleRepo{existing: []models.Schedule{
		{ID: "sch-1", ClassID: "cls-1", TeacherID: &teacher, DayOfWeek: "friday", StartTime: "13:00", EndTime: "14:30", Room: "A1"},
	}}
	svc := NewScheduleService(repo, scheduleClasses("cls-2"), nil, nil)

	req := slot("cls-2", "friday", "14:00", "15:30", "B2")
	req.TeacherID = &teacher
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)

	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "teacher", conflict.Conflicts[0].Dimension)
}
