// Package recurring evaluates monthly recurring rules and drives the
// background sweep that turns due rules into transactions.
package recurring

import (
	"fmt"
	"time"

	"lana/internal/dates"
)

// OccurrenceIn returns the rule's occurrence in the given month. Days past
// the end of a short month fall on its last day.
func OccurrenceIn(dayOfMonth, year int, month time.Month) dates.Date {
	return dates.Clamp(year, month, dayOfMonth)
}

// MostRecentOccurrence returns the latest occurrence on or before today:
// this month's if it has already happened, otherwise last month's.
func MostRecentOccurrence(dayOfMonth int, today dates.Date) dates.Date {
	occ := OccurrenceIn(dayOfMonth, today.Year, today.Month)
	if !occ.After(today) {
		return occ
	}
	prev := dates.AddMonths(dates.FirstOfMonth(today), -1)
	return OccurrenceIn(dayOfMonth, prev.Year, prev.Month)
}

// Due reports whether a rule with the given marker must produce a
// transaction today, and for which date. Only the most recent occurrence is
// ever returned; missed earlier periods are not backfilled.
func Due(dayOfMonth int, lastGenerated *dates.Date, today dates.Date) (dates.Date, bool) {
	occ := MostRecentOccurrence(dayOfMonth, today)
	if lastGenerated == nil || lastGenerated.IsZero() || occ.After(*lastGenerated) {
		return occ, true
	}
	return occ, false
}

// ValidateDayOfMonth checks the 1..31 range.
func ValidateDayOfMonth(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("day_of_month must be between 1 and 31, got %d", day)
	}
	return nil
}

// RunResult counts the outcome of one materialization pass.
type RunResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Add accumulates another result into r.
func (r *RunResult) Add(o RunResult) {
	r.Processed += o.Processed
	r.Skipped += o.Skipped
	r.Errors += o.Errors
}
