// Package dates handles calendar dates (not instants) so that a stored day
// never drifts to its neighbour when it is parsed, rendered or bucketed in a
// different timezone.
package dates

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Layout is the wire and storage format of a Date.
const Layout = "2006-01-02"

// noonSuffix anchors a date-only string at local noon. Any offset up to
// ±12h then stays on the same calendar day.
const noonSuffix = "T12:00:00"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
}

var localTimestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Date is a calendar day without a time-of-day or location.
type Date struct {
	civil.Date
}

// New returns the date for the given year, month and day. Out-of-range days
// are normalised the way time.Date does it.
func New(year int, month time.Month, day int) Date {
	return Of(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// Of returns the calendar day of t in t's own location.
func Of(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return Of(time.Now().In(loc))
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Noon returns 12:00 on d in loc.
func (d Date) Noon(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{d.Date.AddDays(n)}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Date.Before(o.Date) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Date.After(o.Date) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Date == o.Date }

// DaysSince returns the number of days from o to d.
func (d Date) DaysSince(o Date) int { return d.Date.DaysSince(o.Date) }

// String returns d formatted as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only YYYY-MM-DD is
// accepted; timestamps need a location and go through Parse.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := civil.ParseDate(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", string(data))
	}
	d.Date = parsed
	return nil
}

// GormDataType declares the column type used by AutoMigrate.
func (Date) GormDataType() string {
	return "date"
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner. Drivers hand date columns back either as
// text or as a midnight time.Time.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = Of(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("dates: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	parsed, err := civil.ParseDate(s)
	if err != nil {
		return fmt.Errorf("dates: scan %q: %w", s, err)
	}
	d.Date = parsed
	return nil
}

// ParseInLocation converts a stored date string into an instant in loc.
// A bare YYYY-MM-DD is anchored at local noon; a timestamp keeps its
// instant and is moved into loc. Timestamps without a zone are read as
// wall-clock time in loc.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if len(s) == len(Layout) {
		t, err := time.ParseInLocation(Layout+"T15:04:05", s+noonSuffix, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
		}
		return t, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
}

// Parse returns the calendar day that s denotes in loc.
func Parse(s string, loc *time.Location) (Date, error) {
	t, err := ParseInLocation(s, loc)
	if err != nil {
		return Date{}, err
	}
	return Of(t), nil
}

// MustParse is Parse in UTC for literals in tests and tables. It panics on
// malformed input.
func MustParse(s string) Date {
	d, err := Parse(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}
