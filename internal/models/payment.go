package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the collection state of a billing obligation.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusWaived  PaymentStatus = "waived"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Valid reports whether the status is a known value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusWaived, PaymentStatusOverdue:
		return true
	}
	return false
}

// Payment is one billing obligation for one student, one class, one calendar
// month. The (student_id, class_id, year, month) tuple is unique; the generator
// relies on that constraint and never regenerates an existing record.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	StudentName   string          `db:"student_name" json:"student_name"`
	StudentEmail  string          `db:"student_email" json:"student_email"`
	ClassID       string          `db:"class_id" json:"class_id"`
	ClassName     string          `db:"class_name" json:"class_name"`
	Year          int             `db:"year" json:"year"`
	Month         int             `db:"month" json:"month"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	DueDate       time.Time       `db:"due_date" json:"due_date"`
	Status        PaymentStatus   `db:"status" json:"status"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	InvoiceSent   bool            `db:"invoice_sent" json:"invoice_sent"`
	RemindersSent int             `db:"reminders_sent" json:"reminders_sent"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	StudentID string
	ClassID   string
	Year      int
	Month     int
	Status    PaymentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
