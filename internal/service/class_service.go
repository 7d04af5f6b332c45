package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	CountActiveEnrollments(ctx context.Context, classID string) (int, error)
}

type academicYearReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// ClassRequest describes create/update payloads for classes.
type ClassRequest struct {
	Name              string  `json:"name" validate:"required"`
	Grade             string  `json:"grade" validate:"required"`
	AcademicYearID    string  `json:"academic_year_id" validate:"required"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id"`
	Capacity          int     `json:"capacity" validate:"gte=0"`
	TuitionFee        float64 `json:"tuition_fee" validate:"gte=0"`
	Room              string  `json:"room"`
}

// ClassService manages class groups.
type ClassService struct {
	repo      classRepository
	years     academicYearReader
	teachers  teacherReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, years academicYearReader, teachers teacherReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, years: years, teachers: teachers, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list classes")
	}
	return classes, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single class with joined detail.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class not found")
		}
		return nil, internalErr(err, "failed to load class")
	}
	return class, nil
}

// Create registers a new class.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid class payload")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:              req.Name,
		Grade:             req.Grade,
		AcademicYearID:    req.AcademicYearID,
		HomeroomTeacherID: req.HomeroomTeacherID,
		Capacity:          req.Capacity,
		TuitionFee:        req.TuitionFee,
		Room:              req.Room,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, internalErr(err, "failed to create class")
	}
	return s.Get(ctx, class.ID)
}

// Update modifies an existing class.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid class payload")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class not found")
		}
		return nil, internalErr(err, "failed to load class")
	}

	if req.Capacity > 0 && req.Capacity < existing.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "capacity below current enrollment")
	}

	class := existing.Class
	class.Name = req.Name
	class.Grade = req.Grade
	class.AcademicYearID = req.AcademicYearID
	class.HomeroomTeacherID = req.HomeroomTeacherID
	class.Capacity = req.Capacity
	class.TuitionFee = req.TuitionFee
	class.Room = req.Room

	if err := s.repo.Update(ctx, &class); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class not found")
		}
		return nil, internalErr(err, "failed to update class")
	}
	return s.Get(ctx, id)
}

// Delete removes a class unless it still has active enrollments.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	count, err := s.repo.CountActiveEnrollments(ctx, id)
	if err != nil {
		return internalErr(err, "failed to count enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has active enrollments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("class not found")
		}
		return internalErr(err, "failed to delete class")
	}
	return nil
}

func (s *ClassService) checkReferences(ctx context.Context, req ClassRequest) error {
	if _, err := s.years.FindByID(ctx, req.AcademicYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("academic year not found")
		}
		return internalErr(err, "failed to load academic year")
	}
	if req.HomeroomTeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.HomeroomTeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("homeroom teacher not found")
			}
			return internalErr(err, "failed to load homeroom teacher")
		}
	}
	return nil
}
