// Package models defines recurring bill configurations and their matching
// parameters.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "homeledger/pkg/domain"
	dErrors "homeledger/pkg/domain-errors"
)

// Frequency is the cadence of a recurring bill.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiWeekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// Advance moves a date forward by exactly one frequency period. Month-based
// cadences clamp to the last day of the target month so a bill due on the
// 31st advances Jan 31 -> Feb 28 rather than spilling into March.
func (f Frequency) Advance(t time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiWeekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return addMonthsClamped(t, 1)
	case FrequencyQuarterly:
		return addMonthsClamped(t, 3)
	case FrequencyAnnually:
		return addMonthsClamped(t, 12)
	}
	return t
}

// Valid reports whether f is a known cadence.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

// RecurringItem is the matching configuration for one recurring bill.
// The engine mutates only NextDueDate (on a successful match); everything
// else belongs to external CRUD.
type RecurringItem struct {
	ID                     id.RecurringItemID
	HouseholdID            id.HouseholdID
	MerchantName           string
	ExpectedAmount         decimal.Decimal
	Frequency              Frequency
	NextDueDate            time.Time
	DueWindowBeforeDays    int
	DueWindowAfterDays     int
	AmountVariancePercent  decimal.Decimal
	AmountVarianceAbsolute decimal.Decimal
	DueDateWeight          decimal.Decimal
	AmountWeight           decimal.Decimal
	RecencyWeight          decimal.Decimal
	MatchThreshold         decimal.Decimal
	ScoreVersion           string
	TieBreakPolicy         string
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

var weightSum = decimal.RequireFromString("1.0000")

// Validate enforces the configuration invariants external CRUD must uphold.
func (r *RecurringItem) Validate() error {
	if r.HouseholdID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "recurring item requires a household")
	}
	if r.MerchantName == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "recurring item requires a merchant name")
	}
	if !r.Frequency.Valid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown recurring frequency")
	}
	if r.DueWindowBeforeDays < 0 || r.DueWindowAfterDays < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "due window days must not be negative")
	}
	if !r.DueDateWeight.Add(r.AmountWeight).Add(r.RecencyWeight).Equal(weightSum) {
		return dErrors.New(dErrors.CodeInvariantViolation, "score weights must sum to exactly 1.0000")
	}
	if r.MatchThreshold.IsNegative() || r.MatchThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeInvariantViolation, "match threshold must be within [0,1]")
	}
	return nil
}

// AdvanceDueDate moves the next due date forward by exactly one period.
// Always a full period, independent of how close the observed transaction
// landed to the prior due date.
func (r *RecurringItem) AdvanceDueDate(now time.Time) {
	r.NextDueDate = r.Frequency.Advance(r.NextDueDate)
	r.UpdatedAt = now
}
