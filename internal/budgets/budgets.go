// Package budgets computes budget utilization. Nothing here is persisted;
// spending is always recomputed from transactions.
package budgets

import (
	"strings"

	"github.com/shopspring/decimal"

	"lana/internal/dates"
	"lana/internal/models"
)

// Status is the utilization state shown for a budget.
type Status string

const (
	StatusInactive     Status = "inactive"
	StatusOK           Status = "ok"
	StatusWarning      Status = "warning"
	StatusLimitReached Status = "limit_reached"
	StatusExceeded     Status = "exceeded"
)

// DefaultWarningPercent is used when no user setting applies.
const DefaultWarningPercent = 80

// Utilization is spending against a limit, in cents.
type Utilization struct {
	Limit     int64   `json:"limit"`
	Spent     int64   `json:"spent"`
	Remaining int64   `json:"remaining"`
	Percent   float64 `json:"percent"`
	Status    Status  `json:"status"`
}

// Evaluate classifies spent against limit. Reaching the limit exactly and
// going over it are distinct states.
func Evaluate(limit, spent int64, warningPercent int) Utilization {
	u := Utilization{Limit: limit, Spent: spent, Remaining: limit - spent}
	if limit <= 0 {
		u.Remaining = 0
		u.Status = StatusInactive
		return u
	}
	if warningPercent < 1 || warningPercent > 100 {
		warningPercent = DefaultWarningPercent
	}

	u.Percent = decimal.NewFromInt(spent).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(limit)).
		Round(2).
		InexactFloat64()

	switch {
	case spent > limit:
		u.Status = StatusExceeded
	case spent == limit:
		u.Status = StatusLimitReached
	case spent*100 >= limit*int64(warningPercent):
		u.Status = StatusWarning
	default:
		u.Status = StatusOK
	}
	return u
}

// Spent sums the transactions of type typ in category that fall in the
// calendar month of month. Category matching ignores case.
func Spent(txs []models.Transaction, category string, typ models.TransactionType, month dates.Date) int64 {
	from := dates.FirstOfMonth(month)
	to := dates.LastOfMonth(month)

	var total int64
	for i := range txs {
		tx := &txs[i]
		if tx.Type != typ || !strings.EqualFold(tx.Category, category) {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		total += tx.Amount
	}
	return total
}
