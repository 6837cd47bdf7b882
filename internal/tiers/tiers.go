// Package tiers maps subscription tiers to the features and limits they
// unlock.
package tiers

import "lana/internal/models"

// Feature names a gated capability.
type Feature string

const (
	FeatureReceiptScan      Feature = "receipt_scan"
	FeatureAICategorization Feature = "ai_categorization"
	FeatureCFDIInvoicing    Feature = "cfdi_invoicing"
	FeatureExportPDF        Feature = "export_pdf"
	FeatureExportCSV        Feature = "export_csv"
	FeatureCashflowForecast Feature = "cashflow_forecast"
)

// Limit names a counted resource.
type Limit string

const (
	LimitRecurringRules   Limit = "recurring_rules"
	LimitBudgets          Limit = "budgets"
	LimitInvoicesPerMonth Limit = "invoices_per_month"
)

// Unlimited marks a limit with no cap.
const Unlimited = -1

// Limits describes one tier.
type Limits struct {
	Tier     models.SubscriptionTier `json:"tier"`
	Features map[Feature]bool        `json:"features"`
	Caps     map[Limit]int           `json:"limits"`
}

var table = map[models.SubscriptionTier]Limits{
	models.TierFree: {
		Tier: models.TierFree,
		Features: map[Feature]bool{
			FeatureExportCSV: true,
		},
		Caps: map[Limit]int{
			LimitRecurringRules:   3,
			LimitBudgets:          3,
			LimitInvoicesPerMonth: 0,
		},
	},
	models.TierPro: {
		Tier: models.TierPro,
		Features: map[Feature]bool{
			FeatureReceiptScan:      true,
			FeatureAICategorization: true,
			FeatureExportPDF:        true,
			FeatureExportCSV:        true,
			FeatureCashflowForecast: true,
		},
		Caps: map[Limit]int{
			LimitRecurringRules:   25,
			LimitBudgets:          Unlimited,
			LimitInvoicesPerMonth: 0,
		},
	},
	models.TierBusiness: {
		Tier: models.TierBusiness,
		Features: map[Feature]bool{
			FeatureReceiptScan:      true,
			FeatureAICategorization: true,
			FeatureCFDIInvoicing:    true,
			FeatureExportPDF:        true,
			FeatureExportCSV:        true,
			FeatureCashflowForecast: true,
		},
		Caps: map[Limit]int{
			LimitRecurringRules:   Unlimited,
			LimitBudgets:          Unlimited,
			LimitInvoicesPerMonth: 100,
		},
	},
}

// For returns the limits of a tier. Unknown tiers get the free tier.
func For(tier models.SubscriptionTier) Limits {
	if l, ok := table[tier]; ok {
		return l
	}
	return table[models.TierFree]
}

// ForUser returns the limits of the tier the user is currently entitled to.
func ForUser(u *models.User) Limits {
	return For(u.EffectiveTier())
}

// Allows reports whether the tier includes feature f.
func (l Limits) Allows(f Feature) bool {
	return l.Features[f]
}

// WithinLimit reports whether one more item can be added when n already
// exist.
func (l Limits) WithinLimit(name Limit, n int64) bool {
	limit, ok := l.Caps[name]
	if !ok || limit == Unlimited {
		return true
	}
	return n < int64(limit)
}
