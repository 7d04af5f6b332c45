package models

import "time"

// InvoiceStatus represents the billing lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "UNPAID"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// Invoice is a monthly tuition charge for one student in one class.
// FinalAmount is the amount net of the flat discount; when it is nil the
// gross Amount is authoritative.
type Invoice struct {
	ID             string        `db:"id" json:"id"`
	InvoiceNumber  string        `db:"invoice_number" json:"invoice_number"`
	StudentID      string        `db:"student_id" json:"student_id"`
	ClassID        string        `db:"class_id" json:"class_id"`
	Month          int           `db:"month" json:"month"`
	Year           int           `db:"year" json:"year"`
	Amount         float64       `db:"amount" json:"amount"`
	DiscountAmount float64       `db:"discount_amount" json:"discount_amount"`
	FinalAmount    *float64      `db:"final_amount" json:"final_amount,omitempty"`
	Status         InvoiceStatus `db:"status" json:"status"`
	IssueDate      time.Time     `db:"issue_date" json:"issue_date"`
	DueDate        time.Time     `db:"due_date" json:"due_date"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// EffectiveAmount returns the amount actually owed: the net final amount
// when recorded, otherwise the gross amount.
func (i Invoice) EffectiveAmount() float64 {
	if i.FinalAmount != nil {
		return *i.FinalAmount
	}
	return i.Amount
}

// InvoiceDetail enriches Invoice with student and class display info.
// StudentDiscountPercentage carries the student's percentage discount used
// by the financial summary.
type InvoiceDetail struct {
	Invoice
	StudentName               string  `db:"student_name" json:"student_name"`
	StudentCode               string  `db:"student_code" json:"student_code"`
	StudentDiscountPercentage float64 `db:"student_discount_percentage" json:"student_discount_percentage"`
	ClassName                 string  `db:"class_name" json:"class_name"`
}

// InvoiceFilter provides filters for listing invoices.
type InvoiceFilter struct {
	StudentID string
	ClassID   string
	Month     int
	Year      int
	Status    InvoiceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// FinancialSummary bundles the derived dashboard aggregates computed from
// a set of invoices.
type FinancialSummary struct {
	ExpectedIncome     float64 `json:"expected_income"`
	ActualIncome       float64 `json:"actual_income"`
	TotalDiscount      float64 `json:"total_discount"`
	OutstandingBalance float64 `json:"outstanding_balance"`
	PaidCount          int     `json:"paid_count"`
	UnpaidCount        int     `json:"unpaid_count"`
	OverdueCount       int     `json:"overdue_count"`
}
