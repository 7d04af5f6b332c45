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

type classSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, int, error)
	Create(ctx context.Context, session *models.ClassSession) error
	Update(ctx context.Context, session *models.ClassSession) error
	Delete(ctx context.Context, id string) error
}

// ClassSessionRequest describes create/update payloads for class sessions.
type ClassSessionRequest struct {
	ClassID   string    `json:"class_id" validate:"required"`
	TeacherID *string   `json:"teacher_id"`
	Date      time.Time `json:"date" validate:"required"`
	StartTime string    `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string    `json:"end_time" validate:"required,datetime=15:04"`
	Topic     string    `json:"topic"`
	Room      string    `json:"room"`
}

// ClassSessionService manages concrete teaching sessions.
type ClassSessionService struct {
	repo      classSessionRepository
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassSessionService constructs ClassSessionService.
func NewClassSessionService(repo classSessionRepository, classes classReader, validate *validator.Validate, logger *zap.Logger) *ClassSessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassSessionService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns sessions with pagination metadata.
func (s *ClassSessionService) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list class sessions")
	}
	return sessions, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single session.
func (s *ClassSessionService) Get(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class session not found")
		}
		return nil, internalErr(err, "failed to load class session")
	}
	return session, nil
}

// Create registers a concrete teaching session.
func (s *ClassSessionService) Create(ctx context.Context, req ClassSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid class session payload")
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

	session := &models.ClassSession{
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Topic:     req.Topic,
		Room:      req.Room,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, internalErr(err, "failed to create class session")
	}
	return session, nil
}

// Update modifies an existing session.
func (s *ClassSessionService) Update(ctx context.Context, id string, req ClassSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid class session payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	session.TeacherID = req.TeacherID
	session.Date = req.Date
	session.StartTime = req.StartTime
	session.EndTime = req.EndTime
	session.Topic = req.Topic
	session.Room = req.Room

	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("class session not found")
		}
		return nil, internalErr(err, "failed to update class session")
	}
	return session, nil
}

// Delete removes a session.
func (s *ClassSessionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("class session not found")
		}
		return internalErr(err, "failed to delete class session")
	}
	return nil
}
