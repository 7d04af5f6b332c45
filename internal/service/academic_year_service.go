package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

type academicYearRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
	FindActive(ctx context.Context) (*models.AcademicYear, error)
	List(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error)
	Create(ctx context.Context, year *models.AcademicYear) error
	Update(ctx context.Context, year *models.AcademicYear) error
	DeactivateOthers(ctx context.Context, keepID string) error
	Delete(ctx context.Context, id string) error
}

// AcademicYearRequest describes create/update payloads for academic years.
type AcademicYearRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsActive  bool      `json:"is_active"`
}

// AcademicYearService manages school year lifecycles.
type AcademicYearService struct {
	repo      academicYearRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAcademicYearService constructs AcademicYearService.
func NewAcademicYearService(repo academicYearRepository, validate *validator.Validate, logger *zap.Logger) *AcademicYearService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{repo: repo, validator: validate, logger: logger}
}

// List returns academic years with pagination metadata.
func (s *AcademicYearService) List(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, *models.Pagination, error) {
	years, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list academic years")
	}
	return years, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single academic year.
func (s *AcademicYearService) Get(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("academic year not found")
		}
		return nil, internalErr(err, "failed to load academic year")
	}
	return year, nil
}

// GetActive returns the currently active academic year.
func (s *AcademicYearService) GetActive(ctx context.Context) (*models.AcademicYear, error) {
	year, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("no active academic year")
		}
		return nil, internalErr(err, "failed to load active academic year")
	}
	return year, nil
}

// Create registers a new academic year. Marking it active deactivates all
// other years so at most one is active at a time.
func (s *AcademicYearService) Create(ctx context.Context, req AcademicYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid academic year payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	year := &models.AcademicYear{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive,
	}
	if err := s.repo.Create(ctx, year); err != nil {
		return nil, internalErr(err, "failed to create academic year")
	}
	if year.IsActive {
		if err := s.repo.DeactivateOthers(ctx, year.ID); err != nil {
			s.logger.Warn("failed to deactivate other academic years", zap.Error(err))
		}
	}
	return year, nil
}

// Update modifies an existing academic year.
func (s *AcademicYearService) Update(ctx context.Context, id string, req AcademicYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid academic year payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	year, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("academic year not found")
		}
		return nil, internalErr(err, "failed to load academic year")
	}

	year.Name = req.Name
	year.StartDate = req.StartDate
	year.EndDate = req.EndDate
	year.IsActive = req.IsActive

	if err := s.repo.Update(ctx, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("academic year not found")
		}
		return nil, internalErr(err, "failed to update academic year")
	}
	if year.IsActive {
		if err := s.repo.DeactivateOthers(ctx, year.ID); err != nil {
			s.logger.Warn("failed to deactivate other academic years", zap.Error(err))
		}
	}
	return year, nil
}

// Delete removes an academic year.
func (s *AcademicYearService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("academic year not found")
		}
		return internalErr(err, "failed to delete academic year")
	}
	return nil
}
