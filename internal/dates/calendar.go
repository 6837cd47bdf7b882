package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Granularity is the size of a reporting period.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Day, Week, Month, Year:
		return g, nil
	}
	return "", fmt.Errorf("invalid granularity %q: expected day, week, month or year", s)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	return time.Date(year, 12, 31, 12, 0, 0, 0, time.UTC).YearDay()
}

// Clamp returns the date for day in the given month, moving days past the
// end of the month back to its last day and days below 1 up to the first.
func Clamp(year int, month time.Month, day int) Date {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return New(year, month, day)
}

// AddMonths shifts d by n calendar months keeping the day of month, clamped
// to the length of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(d Date, n int) Date {
	first := time.Date(d.Year, d.Month, 1, 12, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Clamp(first.Year(), first.Month(), d.Day)
}

// FirstOfMonth returns the first day of d's month.
func FirstOfMonth(d Date) Date {
	return New(d.Year, d.Month, 1)
}

// LastOfMonth returns the last day of d's month.
func LastOfMonth(d Date) Date {
	return New(d.Year, d.Month, DaysIn(d.Year, d.Month))
}

// ParseMonth parses a YYYY-MM string into the first day of that month.
func ParseMonth(s string) (Date, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return New(t.Year(), t.Month(), 1), nil
}

// Calendar computes period boundaries for a given week start. Every
// computation works on the calendar date itself, so the result does not
// depend on the location the caller evaluates in.
type Calendar struct {
	WeekStart time.Weekday
}

// DefaultCalendar starts weeks on Monday.
var DefaultCalendar = Calendar{WeekStart: time.Monday}

func (c Calendar) with(d Date) *now.Now {
	cfg := &now.Config{WeekStartDay: c.WeekStart, TimeLocation: time.UTC}
	return cfg.With(d.Noon(time.UTC))
}

// StartOf returns the first day of the period of granularity g containing d.
func (c Calendar) StartOf(d Date, g Granularity) Date {
	n := c.with(d)
	switch g {
	case Week:
		return Of(n.BeginningOfWeek())
	case Month:
		return Of(n.BeginningOfMonth())
	case Year:
		return Of(n.BeginningOfYear())
	default:
		return d
	}
}

// EndOf returns the last day of the period of granularity g containing d.
func (c Calendar) EndOf(d Date, g Granularity) Date {
	n := c.with(d)
	switch g {
	case Week:
		return Of(n.EndOfWeek())
	case Month:
		return Of(n.EndOfMonth())
	case Year:
		return Of(n.EndOfYear())
	default:
		return d
	}
}

// Shift moves the period start s by n periods of granularity g.
func (c Calendar) Shift(s Date, g Granularity, n int) Date {
	t := s.Noon(time.UTC)
	switch g {
	case Week:
		return Of(t.AddDate(0, 0, 7*n))
	case Month:
		return Of(t.AddDate(0, n, 0))
	case Year:
		return Of(t.AddDate(n, 0, 0))
	default:
		return s.AddDays(n)
	}
}

// BucketKey identifies the period of granularity g containing d.
func (c Calendar) BucketKey(d Date, g Granularity) string {
	start := c.StartOf(d, g)
	switch g {
	case Month:
		return fmt.Sprintf("%04d-%02d", start.Year, start.Month)
	case Year:
		return fmt.Sprintf("%04d", start.Year)
	default:
		return start.String()
	}
}

// BucketKey uses the default calendar.
func BucketKey(d Date, g Granularity) string {
	return DefaultCalendar.BucketKey(d, g)
}

// ParseWeekday maps a weekday name such as "monday" to a time.Weekday.
func ParseWeekday(s string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(s, wd.String()) {
			return wd, true
		}
	}
	return time.Sunday, false
}
