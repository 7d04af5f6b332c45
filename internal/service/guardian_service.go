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

type guardianRepository interface {
	FindByID(ctx context.Context, id string) (*models.GuardianDetail, error)
	ListStudents(ctx context.Context, guardianID string) ([]models.Student, error)
	List(ctx context.Context, filter models.GuardianFilter) ([]models.GuardianDetail, int, error)
	Create(ctx context.Context, guardian *models.Guardian) error
	Update(ctx context.Context, guardian *models.Guardian) error
	Delete(ctx context.Context, id string) error
}

// GuardianRequest describes create/update payloads for guardians.
type GuardianRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address"`
}

// GuardianService manages guardian records.
type GuardianService struct {
	repo      guardianRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGuardianService constructs GuardianService.
func NewGuardianService(repo guardianRepository, validate *validator.Validate, logger *zap.Logger) *GuardianService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianService{repo: repo, validator: validate, logger: logger}
}

// List returns guardians with pagination metadata.
func (s *GuardianService) List(ctx context.Context, filter models.GuardianFilter) ([]models.GuardianDetail, *models.Pagination, error) {
	guardians, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list guardians")
	}
	return guardians, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single guardian.
func (s *GuardianService) Get(ctx context.Context, id string) (*models.GuardianDetail, error) {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("guardian not found")
		}
		return nil, internalErr(err, "failed to load guardian")
	}
	return guardian, nil
}

// ListStudents returns all students linked to a guardian.
func (s *GuardianService) ListStudents(ctx context.Context, id string) ([]models.Student, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudents(ctx, id)
	if err != nil {
		return nil, internalErr(err, "failed to list guardian students")
	}
	return students, nil
}

// Create registers a new guardian.
func (s *GuardianService) Create(ctx context.Context, req GuardianRequest) (*models.GuardianDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid guardian payload")
	}

	guardian := &models.Guardian{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
	}
	if err := s.repo.Create(ctx, guardian); err != nil {
		return nil, internalErr(err, "failed to create guardian")
	}
	return s.Get(ctx, guardian.ID)
}

// Update modifies an existing guardian.
func (s *GuardianService) Update(ctx context.Context, id string, req GuardianRequest) (*models.GuardianDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid guardian payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	guardian := existing.Guardian
	guardian.FullName = req.FullName
	guardian.Email = req.Email
	guardian.Phone = req.Phone
	guardian.Address = req.Address

	if err := s.repo.Update(ctx, &guardian); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("guardian not found")
		}
		return nil, internalErr(err, "failed to update guardian")
	}
	return s.Get(ctx, id)
}

// Delete removes a guardian unless students are still linked to it.
func (s *GuardianService) Delete(ctx context.Context, id string) error {
	guardian, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if guardian.StudentCount > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "guardian still linked to students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("guardian not found")
		}
		return internalErr(err, "failed to delete guardian")
	}
	return nil
}
