package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/export"
)

type attendanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
	Upsert(ctx context.Context, attendance *models.Attendance) error
	UpsertBatch(ctx context.Context, attendances []*models.Attendance) error
	Delete(ctx context.Context, id string) error
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
}

// MarkAttendanceRequest records one student's status for a session.
type MarkAttendanceRequest struct {
	SessionID string                  `json:"session_id" validate:"required"`
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Notes     *string                 `json:"notes"`
}

// MarkAttendanceBatchRequest records many students at once for one session.
type MarkAttendanceBatchRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Entries   []struct {
		StudentID string                  `json:"student_id" validate:"required"`
		Status    models.AttendanceStatus `json:"status" validate:"required"`
		Notes     *string                 `json:"notes"`
	} `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService manages attendance records and the roll-call view.
type AttendanceService struct {
	repo        attendanceRepository
	sessions    sessionReader
	enrollments enrollmentRosterReader
	validator   *validator.Validate
	logger      *zap.Logger
	csv         *export.CSVExporter
	xlsx        *export.XLSXExporter
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, sessions sessionReader, enrollments enrollmentRosterReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:        repo,
		sessions:    sessions,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
		csv:         export.NewCSVExporter(),
		xlsx:        export.NewXLSXExporter(),
	}
}

// BuildRollCall matches a flat attendance list against the class roster.
// Students without a record default to "unmarked"; the summary is a pure
// partition of the roster by computed status.
func BuildRollCall(sessionID string, roster []models.EnrollmentDetail, attendances []models.Attendance) models.RollCall {
	byStudent := make(map[string]models.Attendance, len(attendances))
	for _, attendance := range attendances {
		byStudent[attendance.StudentID] = attendance
	}

	rollCall := models.RollCall{
		SessionID: sessionID,
		Rows:      make([]models.RollCallRow, 0, len(roster)),
	}
	rollCall.Summary.Total = len(roster)

	for _, enrollment := range roster {
		row := models.RollCallRow{
			StudentID:   enrollment.StudentID,
			StudentName: enrollment.StudentName,
			StudentCode: enrollment.StudentCode,
			Status:      models.AttendanceStatusUnmarked,
		}
		if attendance, ok := byStudent[enrollment.StudentID]; ok {
			row.Status = attendance.Status
			row.Notes = attendance.Notes
		}
		rollCall.Rows = append(rollCall.Rows, row)

		switch row.Status {
		case models.AttendanceStatusPresent:
			rollCall.Summary.Present++
		case models.AttendanceStatusAbsent:
			rollCall.Summary.Absent++
		case models.AttendanceStatusLate:
			rollCall.Summary.Late++
		case models.AttendanceStatusExcused:
			rollCall.Summary.Excused++
		default:
			rollCall.Summary.Unmarked++
		}
	}
	return rollCall
}

// RollCall returns the per-session roll-call view.
func (s *AttendanceService) RollCall(ctx context.Context, sessionID string) (*models.RollCall, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFound("class session not found")
	}

	roster, err := s.enrollments.ListActiveByClass(ctx, session.ClassID)
	if err != nil {
		return nil, internalErr(err, "failed to load class roster")
	}
	attendances, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, internalErr(err, "failed to load attendance records")
	}

	rollCall := BuildRollCall(sessionID, roster, attendances)
	return &rollCall, nil
}

// Mark records a single student's attendance. The synthetic unmarked status
// is cleared by deleting the record, never by storing it.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported attendance status")
	}
	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		return nil, notFound("class session not found")
	}

	attendance := &models.Attendance{
		SessionID: req.SessionID,
		StudentID: req.StudentID,
		Status:    req.Status,
		Notes:     req.Notes,
	}
	if err := s.repo.Upsert(ctx, attendance); err != nil {
		return nil, internalErr(err, "failed to record attendance")
	}
	return attendance, nil
}

// MarkBatch records attendance for many students in one session.
func (s *AttendanceService) MarkBatch(ctx context.Context, req MarkAttendanceBatchRequest) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidErr(err, "invalid attendance batch payload")
	}
	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		return nil, notFound("class session not found")
	}

	attendances := make([]*models.Attendance, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if !entry.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported attendance status for student %s", entry.StudentID))
		}
		attendances = append(attendances, &models.Attendance{
			SessionID: req.SessionID,
			StudentID: entry.StudentID,
			Status:    entry.Status,
			Notes:     entry.Notes,
		})
	}

	if err := s.repo.UpsertBatch(ctx, attendances); err != nil {
		return nil, internalErr(err, "failed to record attendance batch")
	}

	recorded := make([]models.Attendance, 0, len(attendances))
	for _, attendance := range attendances {
		recorded = append(recorded, *attendance)
	}
	return recorded, nil
}

// Unmark deletes an attendance record, returning the roster entry to the
// unmarked state.
func (s *AttendanceService) Unmark(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound("attendance record not found")
	}
	return nil
}

// ExportRollCall renders the roll-call view as CSV or XLSX. Both formats
// derive their rows from the same view; there is no separate formatting
// path.
func (s *AttendanceService) ExportRollCall(ctx context.Context, sessionID string, format models.ExportFormat) ([]byte, string, error) {
	rollCall, err := s.RollCall(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	data := rollCallDataset(rollCall)
	switch format {
	case models.ExportFormatCSV:
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", internalErr(err, "failed to render csv export")
		}
		return payload, "text/csv", nil
	case models.ExportFormatXLSX:
		payload, err := s.xlsx.Render(data, "RollCall")
		if err != nil {
			return nil, "", internalErr(err, "failed to render xlsx export")
		}
		return payload, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func rollCallDataset(rollCall *models.RollCall) export.Dataset {
	data := export.Dataset{
		Headers: []string{"student_code", "student_name", "status", "notes"},
		Rows:    make([]map[string]string, 0, len(rollCall.Rows)),
	}
	for _, row := range rollCall.Rows {
		notes := ""
		if row.Notes != nil {
			notes = *row.Notes
		}
		data.Rows = append(data.Rows, map[string]string{
			"student_code": row.StudentCode,
			"student_name": row.StudentName,
			"status":       string(row.Status),
			"notes":        notes,
		})
	}
	return data
}
