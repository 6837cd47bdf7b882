// Package cashflow groups transactions into fixed time buckets ending with
// the period that contains today.
package cashflow

import (
	"lana/internal/dates"
	"lana/internal/forecast"
	"lana/internal/models"
)

// Bucket is one period of the cash-flow chart.
type Bucket struct {
	Label    string     `json:"label"`
	Start    dates.Date `json:"start"`
	End      dates.Date `json:"end"`
	Income   int64      `json:"income"`
	Expense  int64      `json:"expense"`
	Forecast *int64     `json:"forecast"`
}

// Options tunes Aggregate.
type Options struct {
	// Calendar defaults to Monday weeks when nil.
	Calendar *dates.Calendar
	// Forecast adds the run-rate projection to the last bucket.
	Forecast bool
}

// WindowSize returns how many buckets a chart of granularity g shows.
func WindowSize(g dates.Granularity) int {
	switch g {
	case dates.Week:
		return 12
	case dates.Month:
		return 12
	case dates.Year:
		return 5
	default:
		return 30
	}
}

// Window returns the first and last day covered by the chart of granularity
// g ending with the period that contains today.
func Window(cal dates.Calendar, g dates.Granularity, today dates.Date) (from, to dates.Date) {
	last := cal.StartOf(today, g)
	from = cal.Shift(last, g, -(WindowSize(g) - 1))
	return from, cal.EndOf(today, g)
}

// Aggregate sums income and expense per bucket. Transactions outside the
// window, dated after today, or in the cancelled-invoice category are
// ignored.
func Aggregate(txs []models.Transaction, g dates.Granularity, today dates.Date, opts Options) []Bucket {
	cal := dates.DefaultCalendar
	if opts.Calendar != nil {
		cal = *opts.Calendar
	}

	n := WindowSize(g)
	buckets := make([]Bucket, n)
	index := make(map[string]int, n)
	start := cal.Shift(cal.StartOf(today, g), g, -(n - 1))
	for i := range buckets {
		s := cal.Shift(start, g, i)
		label := cal.BucketKey(s, g)
		buckets[i] = Bucket{Label: label, Start: s, End: cal.EndOf(s, g)}
		index[label] = i
	}

	for _, tx := range txs {
		if tx.IsCancelledInvoice() || tx.Date.After(today) {
			continue
		}
		i, ok := index[cal.BucketKey(tx.Date, g)]
		if !ok {
			continue
		}
		switch tx.Type {
		case models.TransactionTypeIncome:
			buckets[i].Income += tx.Amount
		case models.TransactionTypeExpense:
			buckets[i].Expense += tx.Amount
		}
	}

	if opts.Forecast {
		applyForecast(buckets, cal, g, today)
	}
	return buckets
}

func applyForecast(buckets []Bucket, cal dates.Calendar, g dates.Granularity, today dates.Date) {
	last := len(buckets) - 1
	elapsed, total := forecast.PeriodProgress(cal, g, today)
	projected, ok := forecast.Project(buckets[last].Expense, elapsed, total)
	if !ok {
		return
	}
	buckets[last].Forecast = &projected
	if last > 0 {
		anchor := buckets[last-1].Expense
		buckets[last-1].Forecast = &anchor
	}
}
