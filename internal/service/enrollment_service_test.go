package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

type mockEnrollmentRepo struct {
	byStudentClass map[string]*models.Enrollment
	details        map[string]*models.EnrollmentDetail
	lookupErr      error
	created        *models.Enrollment
	statusUpdates  map[string]models.EnrollmentStatus
}

func (m *mockEnrollmentRepo) key(studentID, classID string) string {
	return studentID + "/" + classID
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.Enrollment, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if e, ok := m.byStudentClass[m.key(studentID, classID)]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-1"
	m.created = enrollment
	if m.details == nil {
		m.details = make(map[string]*models.EnrollmentDetail)
	}
	m.details[enrollment.ID] = &models.EnrollmentDetail{Enrollment: *enrollment}
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.EnrollmentStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error { return nil }

type mockStudentReader struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReader struct {
	classes map[string]*models.ClassDetail
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func activeStudent(id string, discount float64) *models.StudentDetail {
	return &models.StudentDetail{Student: models.Student{ID: id, Active: true, DiscountPercentage: discount}}
}

func openClass(id string, fee float64, capacity, enrolled int) *models.ClassDetail {
	return &models.ClassDetail{
		Class:         models.Class{ID: id, TuitionFee: fee, Capacity: capacity},
		EnrolledCount: enrolled,
	}
}

func TestCheckStatusNotEnrolledOnMissingRow(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockStudentReader{}, &mockClassReader{}, nil, nil)

	check, err := svc.CheckStatus(context.Background(), "stu-1", "cls-1")
	require.NoError(t, err)
	assert.False(t, check.Enrolled)
	assert.Nil(t, check.Status)
	assert.Nil(t, check.Enrollment)
}

func TestCheckStatusSurfacesLookupFailure(t *testing.T) {
	repo := &mockEnrollmentRepo{lookupErr: errors.New("connection reset")}
	svc := NewEnrollmentService(repo, &mockStudentReader{}, &mockClassReader{}, nil, nil)

	check, err := svc.CheckStatus(context.Background(), "stu-1", "cls-1")
	require.Error(t, err)
	assert.Nil(t, check)
	// Backend failures must not masquerade as "not enrolled".
	assert.NotContains(t, err.Error(), "not enrolled")
}

func TestCheckStatusInactiveEnrollmentIsNotEnrolled(t *testing.T) {
	repo := &mockEnrollmentRepo{byStudentClass: map[string]*models.Enrollment{
		"stu-1/cls-1": {ID: "enr-1", StudentID: "stu-1", ClassID: "cls-1", Status: models.EnrollmentStatusInactive},
	}}
	svc := NewEnrollmentService(repo, &mockStudentReader{}, &mockClassReader{}, nil, nil)

	check, err := svc.CheckStatus(context.Background(), "stu-1", "cls-1")
	require.NoError(t, err)
	assert.False(t, check.Enrolled)
	require.NotNil(t, check.Status)
	assert.Equal(t, models.EnrollmentStatusInactive, *check.Status)
	assert.NotNil(t, check.Enrollment)
}

func TestEnrollDefaultsFromStudentAndClass(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"stu-1": activeStudent("stu-1", 10)}}
	classes := &mockClassReader{classes: map[string]*models.ClassDetail{"cls-1": openClass("cls-1", 1500000, 30, 10)}}
	svc := NewEnrollmentService(repo, students, classes, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "cls-1"})
	require.NoError(t, err)

	require.NotNil(t, repo.created)
	assert.Equal(t, 10.0, repo.created.DiscountPercentage)
	assert.Equal(t, 1500000.0, repo.created.TuitionFee)
	assert.Equal(t, models.EnrollmentStatusActive, repo.created.Status)
}

func TestEnrollRejectsFullClass(t *testing.T) {
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"stu-1": activeStudent("stu-1", 0)}}
	classes := &mockClassReader{classes: map[string]*models.ClassDetail{"cls-1": openClass("cls-1", 100, 20, 20)}}
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, students, classes, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "cls-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestEnrollRejectsDuplicateActiveEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{byStudentClass: map[string]*models.Enrollment{
		"stu-1/cls-1": {ID: "enr-1", Status: models.EnrollmentStatusActive},
	}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"stu-1": activeStudent("stu-1", 0)}}
	classes := &mockClassReader{classes: map[string]*models.ClassDetail{"cls-1": openClass("cls-1", 100, 30, 1)}}
	svc := NewEnrollmentService(repo, students, classes, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "cls-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already enrolled")
}

func TestWithdrawOnlyFromActive(t *testing.T) {
	repo := &mockEnrollmentRepo{details: map[string]*models.EnrollmentDetail{
		"enr-1": {Enrollment: models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusActive}},
		"enr-2": {Enrollment: models.Enrollment{ID: "enr-2", Status: models.EnrollmentStatusCompleted}},
	}}
	svc := NewEnrollmentService(repo, &mockStudentReader{}, &mockClassReader{}, nil, nil)

	require.NoError(t, svc.Withdraw(context.Background(), "enr-1"))
	assert.Equal(t, models.EnrollmentStatusInactive, repo.statusUpdates["enr-1"])

	err := svc.Withdraw(context.Background(), "enr-2")
	require.Error(t, err)
}
