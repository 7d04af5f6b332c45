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

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.Enrollment, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

// EnrollStudentRequest describes enrollment creation request. Discount and
// tuition overrides default to the student's percentage and the class fee
// when omitted.
type EnrollStudentRequest struct {
	StudentID          string   `json:"student_id" validate:"required"`
	ClassID            string   `json:"class_id" validate:"required"`
	DiscountPercentage *float64 `json:"discount_percentage" validate:"omitempty,gte=0,lte=100"`
	TuitionFee         *float64 `json:"tuition_fee" validate:"omitempty,gte=0"`
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, classes classReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, classes: classes, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list enrollments")
	}
	return enrollments, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("enrollment not found")
		}
		return nil, internalErr(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// CheckStatus reports whether a student is enrolled in a class. A missing
// row means not enrolled; any other lookup failure surfaces as an error
// rather than being folded into the not-enrolled answer.
func (s *EnrollmentService) CheckStatus(ctx context.Context, studentID, classID string) (*models.EnrollmentStatusCheck, error) {
	enrollment, err := s.repo.FindByStudentAndClass(ctx, studentID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EnrollmentStatusCheck{StudentID: studentID, ClassID: classID, Enrolled: false}, nil
		}
		return nil, internalErr(err, "failed to check enrollment status")
	}
	status := enrollment.Status
	return &models.EnrollmentStatusCheck{
		StudentID:  studentID,
		ClassID:    classID,
		Enrolled:   status == models.EnrollmentStatusActive,
		Status:     &status,
		Enrollment: enrollment,
	}, nil
}

// Enroll registers a student to a class.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("student not found")
		}
		return nil, internalErr(err, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class not found")
		}
		return nil, internalErr(err, "failed to load class")
	}
	if class.Capacity > 0 && class.EnrolledCount >= class.Capacity {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class is full")
	}

	existing, err := s.repo.FindByStudentAndClass(ctx, req.StudentID, req.ClassID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err, "failed to check existing enrollment")
	}
	if existing != nil && existing.Status == models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in class")
	}

	discount := student.DiscountPercentage
	if req.DiscountPercentage != nil {
		discount = *req.DiscountPercentage
	}
	tuition := class.TuitionFee
	if req.TuitionFee != nil {
		tuition = *req.TuitionFee
	}

	enrollment := &models.Enrollment{
		StudentID:          req.StudentID,
		ClassID:            req.ClassID,
		Status:             models.EnrollmentStatusActive,
		DiscountPercentage: discount,
		TuitionFee:         tuition,
		JoinedAt:           time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, internalErr(err, "failed to create enrollment")
	}
	return s.Get(ctx, enrollment.ID)
}

// Withdraw transitions an active enrollment to INACTIVE.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) error {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusInactive, &now); err != nil {
		return internalErr(err, "failed to withdraw enrollment")
	}
	return nil
}

// Complete transitions an active enrollment to COMPLETED.
func (s *EnrollmentService) Complete(ctx context.Context, id string) error {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusCompleted, &now); err != nil {
		return internalErr(err, "failed to complete enrollment")
	}
	return nil
}

// UpdateTerms adjusts the discount and tuition overrides of an enrollment.
func (s *EnrollmentService) UpdateTerms(ctx context.Context, id string, discountPercentage, tuitionFee float64) (*models.EnrollmentDetail, error) {
	if discountPercentage < 0 || discountPercentage > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount percentage out of range")
	}
	if tuitionFee < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tuition fee must not be negative")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	enrollment := detail.Enrollment
	enrollment.DiscountPercentage = discountPercentage
	enrollment.TuitionFee = tuitionFee

	if err := s.repo.Update(ctx, &enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("enrollment not found")
		}
		return nil, internalErr(err, "failed to update enrollment")
	}
	return s.Get(ctx, id)
}
