// Package forecast extends a partially elapsed period with a linear
// run-rate projection of where its total will land.
package forecast

import (
	"math"

	"lana/internal/dates"
)

// Project extrapolates actual, accrued over elapsed of total units, to the
// whole period. It reports false when the period is already complete, in
// which case the actual is the final value. Elapsed is clamped to at least 1.
func Project(actual int64, elapsed, total int) (int64, bool) {
	if total <= 0 || elapsed >= total {
		return 0, false
	}
	if elapsed < 1 {
		elapsed = 1
	}
	projected := float64(actual) / float64(elapsed) * float64(total)
	return int64(math.Round(projected)), true
}

// PeriodProgress returns how many units of the period of granularity g
// containing today have elapsed, counting today, and how many there are in
// total. Days are the unit for week, month and year periods; a day period
// is always complete.
func PeriodProgress(cal dates.Calendar, g dates.Granularity, today dates.Date) (elapsed, total int) {
	switch g {
	case dates.Week:
		start := cal.StartOf(today, dates.Week)
		return today.DaysSince(start) + 1, 7
	case dates.Month:
		return today.Day, dates.DaysIn(today.Year, today.Month)
	case dates.Year:
		return today.Noon(nil).YearDay(), dates.DaysInYear(today.Year)
	default:
		return 1, 1
	}
}
