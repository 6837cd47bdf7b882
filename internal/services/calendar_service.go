package services

import (
	"gorm.io/gorm"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/recurring"
)

// calendarService builds the month calendar.
type calendarService struct {
	db *gorm.DB
}

// NewCalendarService creates a new CalendarServicer.
func NewCalendarService(db *gorm.DB) CalendarServicer {
	return &calendarService{db: db}
}

// GetMonth returns every day of month with its transactions and the
// occurrences of the user's active recurring rules. An occurrence is
// materialized when the rule's marker has reached it.
func (s *calendarService) GetMonth(userID string, month dates.Date) (*CalendarMonth, error) {
	first := dates.FirstOfMonth(month)
	last := dates.LastOfMonth(month)

	var txs []models.Transaction
	if err := applyTransactionFilters(s.db.Where("user_id = ?", userID), dateRangeFilter(first, last)).
		Order("date ASC").
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.RecurringRule
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("day_of_month ASC").
		Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	days := make([]CalendarDay, 0, dates.DaysIn(first.Year, first.Month))
	for d := first; !d.After(last); d = d.AddDays(1) {
		days = append(days, CalendarDay{
			Date:         d,
			Transactions: []models.Transaction{},
			Recurring:    []CalendarEntry{},
		})
	}

	for _, tx := range txs {
		day := &days[tx.Date.Day-1]
		day.Transactions = append(day.Transactions, tx)
		switch tx.Type {
		case models.TransactionTypeIncome:
			day.Income += tx.Amount
		case models.TransactionTypeExpense:
			day.Expense += tx.Amount
		}
	}

	for _, r := range rules {
		occ := recurring.OccurrenceIn(r.DayOfMonth, first.Year, first.Month)
		day := &days[occ.Day-1]
		day.Recurring = append(day.Recurring, CalendarEntry{
			RuleID:       r.ID,
			Type:         r.Type,
			Amount:       r.Amount,
			Category:     r.Category,
			Description:  r.Description,
			Date:         occ,
			Materialized: r.LastGenerated != nil && !r.LastGenerated.Before(occ),
		})
	}

	return &CalendarMonth{Month: monthKey(first), Days: days}, nil
}
