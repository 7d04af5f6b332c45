package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryListBySession(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "student_id", "status", "notes", "created_at", "updated_at"}).
		AddRow("att-1", "sess-1", "stu-1", models.AttendanceStatusPresent, nil, time.Now(), time.Now()).
		AddRow("att-2", "sess-1", "stu-2", models.AttendanceStatusLate, "traffic", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendances WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnRows(rows)

	attendances, err := repo.ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, attendances, 2)
	require.Equal(t, models.AttendanceStatusLate, attendances[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertBatch(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendances")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendances")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	attendances := []*models.Attendance{
		{SessionID: "sess-1", StudentID: "stu-1", Status: models.AttendanceStatusPresent},
		{SessionID: "sess-1", StudentID: "stu-2", Status: models.AttendanceStatusAbsent},
	}
	err := repo.UpsertBatch(context.Background(), attendances)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
