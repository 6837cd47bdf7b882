package services

import (
	"time"

	"lana/internal/dates"
)

// missingID is a well-formed id that no fixture ever produces.
const missingID = "01900000-0000-7000-8000-000000000000"

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func boolPtr(b bool) *bool { return &b }

func datePtr(s string) *dates.Date {
	d := dates.MustParse(s)
	return &d
}

// fixedClock returns a now func pinned to noon UTC of day.
func fixedClock(day string) func() time.Time {
	d := dates.MustParse(day)
	return func() time.Time { return d.Noon(time.UTC) }
}
