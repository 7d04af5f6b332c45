package models

import "time"

// PaymentStatus represents the lifecycle of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records a payment attempt against an invoice. ReferenceNumber is
// a client-visible idempotency token of the form PAY-<epoch-ms>-<last 6
// chars of the invoice id>; it doubles as the bank transfer memo. DataQR
// holds the bank-transfer QR descriptor URL whose "des" query parameter
// embeds that memo.
type Payment struct {
	ID              string        `db:"id" json:"id"`
	InvoiceID       string        `db:"invoice_id" json:"invoice_id"`
	Amount          float64       `db:"amount" json:"amount"`
	PaymentDate     time.Time     `db:"payment_date" json:"payment_date"`
	ReferenceNumber string        `db:"reference_number" json:"reference_number"`
	Status          PaymentStatus `db:"status" json:"status"`
	DataQR          *string       `db:"data_qr" json:"data_qr,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	InvoiceID string
	Status    PaymentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
