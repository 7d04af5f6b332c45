package models

import "time"

// Guardian represents a parent or legal guardian of one or more students.
type Guardian struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GuardianDetail extends Guardian with the students it is responsible for.
type GuardianDetail struct {
	Guardian
	StudentCount int `db:"student_count" json:"student_count"`
}

// GuardianFilter encapsulates search parameters for listing guardians.
type GuardianFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
