package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"

	// AttendanceStatusUnmarked is a synthetic roll-call state for students
	// without a record for the session. It is never persisted.
	AttendanceStatusUnmarked AttendanceStatus = "unmarked"
)

// Valid returns true when the status is a persistable value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance links a student to a class session with a status.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes attendance listing queries.
type AttendanceFilter struct {
	SessionID string
	StudentID string
	Status    *AttendanceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RollCallRow is one roster entry of the per-session roll-call view.
type RollCallRow struct {
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	StudentCode string           `json:"student_code"`
	Status      AttendanceStatus `json:"status"`
	Notes       *string          `json:"notes,omitempty"`
}

// RollCallSummary partitions the roster by computed status.
type RollCallSummary struct {
	Total    int `json:"total"`
	Present  int `json:"present"`
	Absent   int `json:"absent"`
	Late     int `json:"late"`
	Excused  int `json:"excused"`
	Unmarked int `json:"unmarked"`
}

// RollCall is the full per-session roll-call view.
type RollCall struct {
	SessionID string          `json:"session_id"`
	Rows      []RollCallRow   `json:"rows"`
	Summary   RollCallSummary `json:"summary"`
}
