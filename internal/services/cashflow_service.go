package services

import (
	"time"

	"gorm.io/gorm"

	"lana/internal/cashflow"
	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/tiers"
)

// cashflowService builds the cash-flow chart.
type cashflowService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCashflowService creates a new CashflowServicer.
func NewCashflowService(db *gorm.DB) CashflowServicer {
	return &cashflowService{db: db, now: time.Now}
}

// GetCashflow aggregates the user's transactions into the buckets of
// granularity ending with today in the user's timezone. The run-rate
// forecast is included only on tiers that offer it.
func (s *cashflowService) GetCashflow(userID string, granularity dates.Granularity) (*CashflowReport, error) {
	if _, err := dates.ParseGranularity(string(granularity)); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := loadSettings(s.db, userID)
	if err != nil {
		return nil, err
	}

	cal := prefs.Calendar()
	today := dates.Of(s.now().In(prefs.Location()))
	from, to := cashflow.Window(cal, granularity, today)

	var txs []models.Transaction
	if err := applyTransactionFilters(s.db.Where("user_id = ?", userID), dateRangeFilter(from, to)).
		Find(&txs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	forecast := tiers.ForUser(user).Allows(tiers.FeatureCashflowForecast)
	return &CashflowReport{
		Granularity:     granularity,
		From:            from,
		To:              to,
		ForecastEnabled: forecast,
		Buckets:         cashflow.Aggregate(txs, granularity, today, cashflow.Options{Calendar: &cal, Forecast: forecast}),
	}, nil
}
