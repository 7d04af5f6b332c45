package models

import "time"

// EnrollmentStatus represents the lifecycle of a class enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusInactive  EnrollmentStatus = "INACTIVE"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
)

// Enrollment captures a student's registration to a class.
// TuitionFee and DiscountPercentage may override the class defaults.
type Enrollment struct {
	ID                 string           `db:"id" json:"id"`
	StudentID          string           `db:"student_id" json:"student_id"`
	ClassID            string           `db:"class_id" json:"class_id"`
	Status             EnrollmentStatus `db:"status" json:"status"`
	DiscountPercentage float64          `db:"discount_percentage" json:"discount_percentage"`
	TuitionFee         float64          `db:"tuition_fee" json:"tuition_fee"`
	JoinedAt           time.Time        `db:"joined_at" json:"joined_at"`
	LeftAt             *time.Time       `db:"left_at" json:"left_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	StudentCode string `db:"student_code" json:"student_code"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EnrollmentStatusCheck reports whether a student is actively enrolled in a class.
type EnrollmentStatusCheck struct {
	StudentID  string            `json:"student_id"`
	ClassID    string            `json:"class_id"`
	Enrolled   bool              `json:"enrolled"`
	Status     *EnrollmentStatus `json:"status,omitempty"`
	Enrollment *Enrollment       `json:"enrollment,omitempty"`
}
