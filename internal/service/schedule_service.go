package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	FindOverlapping(ctx context.Context, schedule *models.Schedule, excludeID string) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

// ScheduleRequest describes create/update payloads for weekly schedule slots.
type ScheduleRequest struct {
	ClassID   string  `json:"class_id" validate:"required"`
	TeacherID *string `json:"teacher_id"`
	DayOfWeek string  `json:"day_of_week" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string  `json:"end_time" validate:"required,datetime=15:04"`
	Room      string  `json:"room" validate:"required"`
}

// ScheduleService manages the weekly timetable and its overlap rules.
type ScheduleService struct {
	repo      scheduleRepository
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(repo scheduleRepository, classes classReader, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list schedules")
	}
	return schedules, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single schedule slot.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("schedule not found")
		}
		return nil, internalErr(err, "failed to load schedule")
	}
	return schedule, nil
}

// Create registers a new schedule slot after overlap validation.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (*models.Schedule, error) {
	schedule, err := s.prepare(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, internalErr(err, "failed to create schedule")
	}
	return schedule, nil
}

// CreateBatch validates and creates several slots. The whole batch is
// rejected when any slot overlaps an existing one or another slot in the
// same request.
func (s *ScheduleService) CreateBatch(ctx context.Context, reqs []ScheduleRequest) ([]models.Schedule, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty schedule batch")
	}

	prepared := make([]*models.Schedule, 0, len(reqs))
	for i, req := range reqs {
		schedule, err := s.prepare(ctx, req, "")
		if err != nil {
			return nil, err
		}
		for _, earlier := range prepared {
			if overlapsWithin(schedule, earlier) {
				return nil, &models.ScheduleConflictError{
					Message:   fmt.Sprintf("slot %d overlaps another slot in the batch", i+1),
					Conflicts: []models.ScheduleConflict{conflictFrom(earlier, "batch")},
				}
			}
		}
		prepared = append(prepared, schedule)
	}

	created := make([]models.Schedule, 0, len(prepared))
	for _, schedule := range prepared {
		if err := s.repo.Create(ctx, schedule); err != nil {
			return nil, internalErr(err, "failed to create schedule")
		}
		created = append(created, *schedule)
	}
	return created, nil
}

// Update modifies an existing slot after overlap validation.
func (s *ScheduleService) Update(ctx context.Context, id string, req ScheduleRequest) (*models.Schedule, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	schedule, err := s.prepare(ctx, req, id)
	if err != nil {
		return nil, err
	}
	schedule.ID = id
	if err := s.repo.Update(ctx, schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("schedule not found")
		}
		return nil, internalErr(err, "failed to update schedule")
	}
	return schedule, nil
}

// Delete removes a schedule slot.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("schedule not found")
		}
		return internalErr(err, "failed to delete schedule")
	}
	return nil
}

// DeleteBatch removes several slots; missing ids abort the batch.
func (s *ScheduleService) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "empty schedule batch")
	}
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScheduleService) prepare(ctx context.Context, req ScheduleRequest, excludeID string) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid schedule payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class not found")
		}
		return nil, internalErr(err, "failed to load class")
	}

	schedule := &models.Schedule{
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	}

	overlapping, err := s.repo.FindOverlapping(ctx, schedule, excludeID)
	if err != nil {
		return nil, internalErr(err, "failed to check schedule overlaps")
	}
	if len(overlapping) > 0 {
		conflicts := make([]models.ScheduleConflict, 0, len(overlapping))
		for _, existing := range overlapping {
			conflicts = append(conflicts, conflictFrom(&existing, dimension(schedule, &existing)))
		}
		return nil, &models.ScheduleConflictError{
			Message:   "schedule overlaps an existing entry",
			Conflicts: conflicts,
		}
	}
	return schedule, nil
}

// overlapsWithin reports whether two same-request slots collide on any
// shared dimension. Times are HH:MM strings so lexical comparison orders
// them correctly.
func overlapsWithin(a, b *models.Schedule) bool {
	if a.DayOfWeek != b.DayOfWeek {
		return false
	}
	if a.StartTime >= b.EndTime || a.EndTime <= b.StartTime {
		return false
	}
	if a.ClassID == b.ClassID || a.Room == b.Room {
		return true
	}
	return a.TeacherID != nil && b.TeacherID != nil && *a.TeacherID == *b.TeacherID
}

func dimension(proposed, existing *models.Schedule) string {
	switch {
	case proposed.ClassID == existing.ClassID:
		return "class"
	case proposed.Room == existing.Room:
		return "room"
	default:
		return "teacher"
	}
}

func conflictFrom(schedule *models.Schedule, dim string) models.ScheduleConflict {
	conflict := models.ScheduleConflict{
		ScheduleID: schedule.ID,
		ClassID:    schedule.ClassID,
		DayOfWeek:  schedule.DayOfWeek,
		StartTime:  schedule.StartTime,
		EndTime:    schedule.EndTime,
		Room:       schedule.Room,
		Dimension:  dim,
	}
	if schedule.TeacherID != nil {
		conflict.TeacherID = *schedule.TeacherID
	}
	return conflict
}
