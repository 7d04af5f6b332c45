package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

func rosterEntry(studentID, name, code string) models.EnrollmentDetail {
	return models.EnrollmentDetail{
		Enrollment:  models.Enrollment{StudentID: studentID, Status: models.EnrollmentStatusActive},
		StudentName: name,
		StudentCode: code,
	}
}

func TestBuildRollCallPartitionsRoster(t *testing.T) {
	roster := []models.EnrollmentDetail{
		rosterEntry("stu-1", "An", "S001"),
		rosterEntry("stu-2", "Binh", "S002"),
		rosterEntry("stu-3", "Chi", "S003"),
		rosterEntry("stu-4", "Dung", "S004"),
	}
	attendances := []models.Attendance{
		{SessionID: "ses-1", StudentID: "stu-1", Status: models.AttendanceStatusPresent},
		{SessionID: "ses-1", StudentID: "stu-3", Status: models.AttendanceStatusLate},
	}

	rollCall := BuildRollCall("ses-1", roster, attendances)

	require.Len(t, rollCall.Rows, 4)
	assert.Equal(t, "ses-1", rollCall.SessionID)

	byStudent := make(map[string]models.AttendanceStatus)
	for _, row := range rollCall.Rows {
		byStudent[row.StudentID] = row.Status
	}
	assert.Equal(t, models.AttendanceStatusPresent, byStudent["stu-1"])
	assert.Equal(t, models.AttendanceStatusUnmarked, byStudent["stu-2"])
	assert.Equal(t, models.AttendanceStatusLate, byStudent["stu-3"])
	assert.Equal(t, models.AttendanceStatusUnmarked, byStudent["stu-4"])

	summary := rollCall.Summary
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Present)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 0, summary.Absent)
	assert.Equal(t, 0, summary.Excused)
	// Unmarked is always the roster remainder.
	assert.Equal(t, summary.Total-summary.Present-summary.Absent-summary.Late-summary.Excused, summary.Unmarked)
}

func TestBuildRollCallEmptyRoster(t *testing.T) {
	rollCall := BuildRollCall("ses-1", nil, nil)

	assert.Empty(t, rollCall.Rows)
	assert.Zero(t, rollCall.Summary.Total)
	assert.Zero(t, rollCall.Summary.Unmarked)
}

func TestBuildRollCallIgnoresRecordsOutsideRoster(t *testing.T) {
	roster := []models.EnrollmentDetail{rosterEntry("stu-1", "An", "S001")}
	attendances := []models.Attendance{
		{SessionID: "ses-1", StudentID: "stu-1", Status: models.AttendanceStatusAbsent},
		// Withdrawn student with a stale record.
		{SessionID: "ses-1", StudentID: "stu-9", Status: models.AttendanceStatusPresent},
	}

	rollCall := BuildRollCall("ses-1", roster, attendances)

	require.Len(t, rollCall.Rows, 1)
	assert.Equal(t, models.AttendanceStatusAbsent, rollCall.Rows[0].Status)
	assert.Equal(t, 1, rollCall.Summary.Total)
	assert.Equal(t, 0, rollCall.Summary.Present)
}

func TestAttendanceStatusValid(t *testing.T) {
	assert.True(t, models.AttendanceStatusPresent.Valid())
	assert.True(t, models.AttendanceStatusExcused.Valid())
	assert.False(t, models.AttendanceStatusUnmarked.Valid())
	assert.False(t, models.AttendanceStatus("PRESENT").Valid())
}
