package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeFee returns the amount owed for one enrollment-month given the
// class's base monthly fee and the enrollment's optional fee adjustment.
// Discounts are percentages of the base fee, waivers zero the amount no
// matter their value, and custom adjustments override the fee outright.
func ComputeFee(monthlyFee decimal.Decimal, adj *models.FeeAdjustment) decimal.Decimal {
	if adj == nil {
		return monthlyFee
	}
	switch adj.Kind {
	case models.FeeAdjustmentDiscount:
		return monthlyFee.Mul(hundred.Sub(adj.Amount)).Div(hundred)
	case models.FeeAdjustmentWaiver:
		return decimal.Zero
	case models.FeeAdjustmentCustom:
		return adj.Amount
	}
	return monthlyFee
}

// PaymentStatusForAmount derives the initial payment status: exactly zero
// amounts are recorded as waived, anything else starts out pending.
func PaymentStatusForAmount(amount decimal.Decimal) models.PaymentStatus {
	if amount.IsZero() {
		return models.PaymentStatusWaived
	}
	return models.PaymentStatusPending
}

// ComputeProratedAmount applies week-based proration for enrollments that
// start inside the billed month. The month is split into ceil(days/7) weekly
// buckets; an enrollment in the first week pays the full fee, later weeks pay
// the remaining weeks at the weekly rate, rounded to the nearest whole unit.
// Enrollments before the month pay in full, enrollments after it pay nothing.
func ComputeProratedAmount(monthlyFee decimal.Decimal, enrolledAt time.Time, month, year int) decimal.Decimal {
	firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstDay.AddDate(0, 1, -1)
	enrolledDay := time.Date(enrolledAt.Year(), enrolledAt.Month(), enrolledAt.Day(), 0, 0, 0, 0, time.UTC)

	if enrolledDay.Before(firstDay) {
		return monthlyFee
	}
	if enrolledDay.After(lastDay) {
		return decimal.Zero
	}

	daysInMonth := lastDay.Day()
	weeksInMonth := (daysInMonth + 6) / 7
	enrollmentWeek := (enrolledDay.Day() + 6) / 7
	if enrollmentWeek == 1 {
		return monthlyFee
	}

	remainingWeeks := weeksInMonth - enrollmentWeek + 1
	weeklyRate := monthlyFee.Div(decimal.NewFromInt(int64(weeksInMonth)))
	return weeklyRate.Mul(decimal.NewFromInt(int64(remainingWeeks))).Round(0)
}
