package models

import "time"

// GenerationStatus is the ledger entry for one (year, month) billing period.
// Exactly one row exists per period; is_complete=false marks an interrupted or
// in-progress run and is what the recovery scanner acts on. The in_progress
// flag and run token back the conditional claim that serializes runs.
type GenerationStatus struct {
	Year        int       `db:"year" json:"year"`
	Month       int       `db:"month" json:"month"`
	GeneratedAt time.Time `db:"generated_at" json:"generated_at"`
	GeneratedBy string    `db:"generated_by" json:"generated_by"`
	Count       int       `db:"count" json:"count"`
	IsComplete  bool      `db:"is_complete" json:"is_complete"`
	InProgress  bool      `db:"in_progress" json:"in_progress"`
	RunToken    *string   `db:"run_token" json:"-"`
}

// GenerationResult summarizes one generation run.
type GenerationResult struct {
	Year            int  `json:"year"`
	Month           int  `json:"month"`
	NewCount        int  `json:"new_count"`
	SkipCount       int  `json:"skip_count"`
	AlreadyComplete bool `json:"already_complete"`
}

// PeriodReport is one row of a recovery scan across recent billing periods.
type PeriodReport struct {
	Year      int  `json:"year"`
	Month     int  `json:"month"`
	Generated bool `json:"generated"`
	Complete  bool `json:"complete"`
	Count     int  `json:"count"`
}

// BillingPeriod identifies one (month, year) pair.
type BillingPeriod struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Previous returns the period immediately before p, rolling over year
// boundaries.
func (p BillingPeriod) Previous() BillingPeriod {
	if p.Month <= 1 {
		return BillingPeriod{Year: p.Year - 1, Month: 12}
	}
	return BillingPeriod{Year: p.Year, Month: p.Month - 1}
}
