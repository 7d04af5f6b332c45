package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID                 string    `db:"id" json:"id"`
	Code               string    `db:"code" json:"code"`
	FullName           string    `db:"full_name" json:"full_name"`
	Gender             string    `db:"gender" json:"gender"`
	BirthDate          time.Time `db:"birth_date" json:"birth_date"`
	Address            string    `db:"address" json:"address"`
	Phone              string    `db:"phone" json:"phone"`
	GuardianID         *string   `db:"guardian_id" json:"guardian_id,omitempty"`
	DiscountPercentage float64   `db:"discount_percentage" json:"discount_percentage"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with enrollment context.
type StudentDetail struct {
	Student
	GuardianName     *string    `db:"guardian_name" json:"guardian_name,omitempty"`
	CurrentClassID   *string    `db:"current_class_id" json:"current_class_id,omitempty"`
	CurrentClassName *string    `db:"current_class_name" json:"current_class_name,omitempty"`
	EnrolledAt       *time.Time `db:"enrolled_at" json:"enrolled_at,omitempty"`
}
