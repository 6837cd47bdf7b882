package recurring

import (
	"testing"

	"lana/internal/dates"
)

func datePtr(s string) *dates.Date {
	d := dates.MustParse(s)
	return &d
}

func TestMostRecentOccurrence(t *testing.T) {
	tests := []struct {
		name  string
		day   int
		today string
		want  string
	}{
		{"this month already passed", 15, "2024-03-20", "2024-03-15"},
		{"occurrence is today", 15, "2024-03-15", "2024-03-15"},
		{"not yet this month", 25, "2024-03-20", "2024-02-25"},
		{"clamped in february", 31, "2024-02-29", "2024-02-29"},
		{"clamped previous month", 31, "2024-03-10", "2024-02-29"},
		{"across year boundary", 20, "2024-01-05", "2023-12-20"},
		{"thirty day month", 31, "2024-04-30", "2024-04-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MostRecentOccurrence(tt.day, dates.MustParse(tt.today))
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDue(t *testing.T) {
	t.Run("never generated", func(t *testing.T) {
		occ, due := Due(15, nil, dates.MustParse("2024-03-20"))
		if !due || occ.String() != "2024-03-15" {
			t.Errorf("expected due on 2024-03-15, got %s %v", occ, due)
		}
	})

	t.Run("already generated this period", func(t *testing.T) {
		_, due := Due(15, datePtr("2024-03-15"), dates.MustParse("2024-03-20"))
		if due {
			t.Error("expected rule not to be due again within the period")
		}
	})

	t.Run("next period reached", func(t *testing.T) {
		occ, due := Due(15, datePtr("2024-03-15"), dates.MustParse("2024-04-15"))
		if !due || occ.String() != "2024-04-15" {
			t.Errorf("expected due on 2024-04-15, got %s %v", occ, due)
		}
	})

	t.Run("missed months backfill only the latest", func(t *testing.T) {
		occ, due := Due(15, datePtr("2024-01-15"), dates.MustParse("2024-06-20"))
		if !due || occ.String() != "2024-06-15" {
			t.Errorf("expected due on 2024-06-15, got %s %v", occ, due)
		}
		// Once advanced, the same day produces nothing more.
		if _, again := Due(15, &occ, dates.MustParse("2024-06-20")); again {
			t.Error("expected a single occurrence per invocation")
		}
	})

	t.Run("marker after occurrence", func(t *testing.T) {
		_, due := Due(10, datePtr("2024-03-12"), dates.MustParse("2024-03-20"))
		if due {
			t.Error("expected marker ahead of occurrence to suppress generation")
		}
	})
}

func TestValidateDayOfMonth(t *testing.T) {
	for _, d := range []int{1, 15, 31} {
		if err := ValidateDayOfMonth(d); err != nil {
			t.Errorf("day %d: unexpected error %v", d, err)
		}
	}
	for _, d := range []int{0, 32, -1} {
		if err := ValidateDayOfMonth(d); err == nil {
			t.Errorf("day %d: expected error", d)
		}
	}
}

func TestRunResult_Add(t *testing.T) {
	r := RunResult{Processed: 1}
	r.Add(RunResult{Processed: 2, Skipped: 3, Errors: 1})
	if r != (RunResult{Processed: 3, Skipped: 3, Errors: 1}) {
		t.Errorf("unexpected result %+v", r)
	}
}
