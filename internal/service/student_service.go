package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type guardianReader interface {
	FindByID(ctx context.Context, id string) (*models.GuardianDetail, error)
}

// StudentRequest describes create/update payloads for students.
type StudentRequest struct {
	Code               string    `json:"code" validate:"required"`
	FullName           string    `json:"full_name" validate:"required"`
	Gender             string    `json:"gender" validate:"omitempty,oneof=male female other"`
	BirthDate          time.Time `json:"birth_date" validate:"required"`
	Address            string    `json:"address"`
	Phone              string    `json:"phone"`
	GuardianID         *string   `json:"guardian_id"`
	DiscountPercentage float64   `json:"discount_percentage" validate:"gte=0,lte=100"`
	Active             bool      `json:"active"`
}

// StudentService manages student records.
type StudentService struct {
	repo      studentRepository
	guardians guardianReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, guardians guardianReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, guardians: guardians, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list students")
	}
	return students, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single student with guardian and class context.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("student not found")
		}
		return nil, internalErr(err, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid student payload")
	}
	if err := s.checkGuardian(ctx, req.GuardianID); err != nil {
		return nil, err
	}

	student := &models.Student{
		Code:               req.Code,
		FullName:           req.FullName,
		Gender:             req.Gender,
		BirthDate:          req.BirthDate,
		Address:            req.Address,
		Phone:              req.Phone,
		GuardianID:         req.GuardianID,
		DiscountPercentage: req.DiscountPercentage,
		Active:             req.Active,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, internalErr(err, "failed to create student")
	}
	return s.Get(ctx, student.ID)
}

// Update modifies an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid student payload")
	}
	if err := s.checkGuardian(ctx, req.GuardianID); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("student not found")
		}
		return nil, internalErr(err, "failed to load student")
	}

	student := existing.Student
	student.Code = req.Code
	student.FullName = req.FullName
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.Address = req.Address
	student.Phone = req.Phone
	student.GuardianID = req.GuardianID
	student.DiscountPercentage = req.DiscountPercentage
	student.Active = req.Active

	if err := s.repo.Update(ctx, &student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("student not found")
		}
		return nil, internalErr(err, "failed to update student")
	}
	return s.Get(ctx, id)
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("student not found")
		}
		return internalErr(err, "failed to delete student")
	}
	return nil
}

func (s *StudentService) checkGuardian(ctx context.Context, guardianID *string) error {
	if guardianID == nil {
		return nil
	}
	if _, err := s.guardians.FindByID(ctx, *guardianID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("guardian not found")
		}
		return internalErr(err, "failed to load guardian")
	}
	return nil
}
