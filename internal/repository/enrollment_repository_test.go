package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByStudentAndClass(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "status", "discount_percentage", "tuition_fee", "joined_at", "left_at", "created_at", "updated_at"}).
		AddRow("enr-1", "stu-1", "class-1", models.EnrollmentStatusActive, 10.0, 1500000.0, time.Now(), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND class_id = $2 ORDER BY joined_at DESC LIMIT 1")).
		WithArgs("stu-1", "class-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByStudentAndClass(context.Background(), "stu-1", "class-1")
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.Equal(t, 10.0, enrollment.DiscountPercentage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByStudentAndClassNotEnrolled(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND class_id = $2")).
		WithArgs("stu-1", "class-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByStudentAndClass(context.Background(), "stu-1", "class-9")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveByClass(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "status", "discount_percentage", "tuition_fee", "joined_at", "left_at", "created_at", "updated_at", "student_name", "student_code", "class_name"}).
		AddRow("enr-1", "stu-1", "class-1", models.EnrollmentStatusActive, 0.0, 1500000.0, time.Now(), nil, time.Now(), time.Now(), "An Nguyen", "HS001", "10A1").
		AddRow("enr-2", "stu-2", "class-1", models.EnrollmentStatusActive, 25.0, 1500000.0, time.Now(), nil, time.Now(), time.Now(), "Binh Tran", "HS002", "10A1")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.status = 'ACTIVE'")).
		WithArgs("class-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.Equal(t, "HS002", enrollments[1].StudentCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, left_at = $3, updated_at = $4 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.EnrollmentStatusCompleted, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
