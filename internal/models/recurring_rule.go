package models

import "lana/internal/dates"

// RecurringRule produces one transaction per month on DayOfMonth. The
// materializer is the only writer of LastGenerated.
type RecurringRule struct {
	Base
	UserID        string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Type          TransactionType `gorm:"not null" json:"type"`
	Amount        int64           `gorm:"type:bigint;not null" json:"amount"`
	Category      string          `gorm:"not null;default:''" json:"category"`
	Description   string          `json:"description"`
	DayOfMonth    int             `gorm:"not null" json:"day_of_month"`
	LastGenerated *dates.Date     `json:"last_generated,omitempty"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
}
