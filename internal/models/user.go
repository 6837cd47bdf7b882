package models

import "time"

// SubscriptionTier names a paid plan.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "free"
	TierPro      SubscriptionTier = "pro"
	TierBusiness SubscriptionTier = "business"
)

// SubscriptionStatus mirrors the processor's subscription status.
type SubscriptionStatus string

const (
	SubscriptionNone     SubscriptionStatus = ""
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// User represents the user model in the database
type User struct {
	Base
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	SubscriptionTier     SubscriptionTier   `gorm:"not null;default:'free'" json:"subscription_tier"`
	SubscriptionStatus   SubscriptionStatus `gorm:"not null;default:''" json:"subscription_status"`
	StripeCustomerID     string             `gorm:"index" json:"-"`
	StripeSubscriptionID string             `json:"-"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
}

// EffectiveTier is the tier the user is entitled to right now. A paid plan
// that is not active or trialing, or whose paid period has ended, falls back
// to free.
func (u *User) EffectiveTier() SubscriptionTier {
	return u.EffectiveTierAt(time.Now())
}

// EffectiveTierAt is EffectiveTier evaluated at now.
func (u *User) EffectiveTierAt(now time.Time) SubscriptionTier {
	if u.SubscriptionTier == "" || u.SubscriptionTier == TierFree {
		return TierFree
	}
	if u.CurrentPeriodEnd != nil && now.After(*u.CurrentPeriodEnd) {
		return TierFree
	}
	switch u.SubscriptionStatus {
	case SubscriptionActive, SubscriptionTrialing:
		return u.SubscriptionTier
	}
	return TierFree
}
