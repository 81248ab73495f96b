package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusInactive  EnrollmentStatus = "inactive"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentStatusOnHold    EnrollmentStatus = "on_hold"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

// Valid reports whether the status is a known value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusInactive, EnrollmentStatusWithdrawn,
		EnrollmentStatusOnHold, EnrollmentStatusCompleted:
		return true
	}
	return false
}

// FeeAdjustmentKind discriminates the fee adjustment union.
type FeeAdjustmentKind string

// Supported fee adjustment kinds.
const (
	FeeAdjustmentDiscount FeeAdjustmentKind = "discount"
	FeeAdjustmentWaiver   FeeAdjustmentKind = "waiver"
	FeeAdjustmentCustom   FeeAdjustmentKind = "custom"
)

// FeeAdjustment overrides a class's base monthly fee for one enrollment.
// Kind selects the interpretation of Amount: a percentage for discounts,
// ignored for waivers, an absolute amount for custom overrides. The field is
// named Amount so the jsonb Valuer below keeps the Value method name free.
type FeeAdjustment struct {
	Kind   FeeAdjustmentKind `json:"kind"`
	Amount decimal.Decimal   `json:"value"`
	Reason string            `json:"reason,omitempty"`
}

// Validate checks the union at the ingress boundary, exhaustively per kind.
func (a *FeeAdjustment) Validate() error {
	if a == nil {
		return nil
	}
	switch a.Kind {
	case FeeAdjustmentDiscount:
		if a.Amount.IsNegative() || a.Amount.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("discount value must be between 0 and 100, got %s", a.Amount)
		}
	case FeeAdjustmentWaiver:
		// Amount carries no meaning for waivers.
	case FeeAdjustmentCustom:
		if a.Amount.IsNegative() {
			return fmt.Errorf("custom amount must not be negative, got %s", a.Amount)
		}
	default:
		return fmt.Errorf("unknown fee adjustment kind %q", a.Kind)
	}
	return nil
}

// Value implements driver.Valuer for the jsonb column.
func (a *FeeAdjustment) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *FeeAdjustment) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("fee adjustment: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// Enrollment captures a student's registration to a class. The billing core
// reads enrollments but never mutates their status.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	StudentName   string           `db:"student_name" json:"student_name"`
	ClassID       string           `db:"class_id" json:"class_id"`
	ClassName     string           `db:"class_name" json:"class_name"`
	EnrolledAt    time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	EndedAt       *time.Time       `db:"ended_at" json:"ended_at,omitempty"`
	FeeAdjustment *FeeAdjustment   `db:"fee_adjustment" json:"fee_adjustment,omitempty"`
	Notes         string           `db:"notes" json:"notes"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
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
