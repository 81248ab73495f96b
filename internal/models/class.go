package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleSlot is one weekly meeting of a class.
type ScheduleSlot struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ScheduleSlots is the jsonb-backed weekly schedule of a class.
type ScheduleSlots []ScheduleSlot

// Value implements driver.Valuer.
func (s ScheduleSlots) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ScheduleSlots) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("schedule slots: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, s)
}

// Class represents a course with a recurring weekly schedule and a monthly fee.
type Class struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Subject    string          `db:"subject" json:"subject"`
	MonthlyFee decimal.Decimal `db:"monthly_fee" json:"monthly_fee"`
	Schedule   ScheduleSlots   `db:"schedule" json:"schedule"`
	Capacity   int             `db:"capacity" json:"capacity"`
	Active     bool            `db:"active" json:"active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Subject   string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
