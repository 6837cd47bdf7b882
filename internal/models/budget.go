package models

// Budget caps monthly spending in a category. A zero limit disables it.
type Budget struct {
	Base
	UserID   string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Category string       `gorm:"not null" json:"category"`
	Type     CategoryType `gorm:"not null;default:'expense'" json:"type"`
	Limit    int64        `gorm:"column:limit_amount;type:bigint;not null;default:0" json:"limit"`
}

// IsActive reports whether the budget has a limit set.
func (b *Budget) IsActive() bool {
	return b.Limit > 0
}
