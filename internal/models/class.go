package models

import "time"

// Class represents a class group within an academic year.
type Class struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Grade             string    `db:"grade" json:"grade"`
	AcademicYearID    string    `db:"academic_year_id" json:"academic_year_id"`
	HomeroomTeacherID *string   `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
	Capacity          int       `db:"capacity" json:"capacity"`
	TuitionFee        float64   `db:"tuition_fee" json:"tuition_fee"`
	Room              string    `db:"room" json:"room"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with joined display information.
type ClassDetail struct {
	Class
	AcademicYearName    string  `db:"academic_year_name" json:"academic_year_name"`
	HomeroomTeacherName *string `db:"homeroom_teacher_name" json:"homeroom_teacher_name,omitempty"`
	EnrolledCount       int     `db:"enrolled_count" json:"enrolled_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	AcademicYearID string
	Grade          string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
