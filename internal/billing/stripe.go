// Package billing sells subscription tiers through Stripe and turns webhook
// events into tier changes.
package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"lana/internal/models"
)

// Metadata keys set on Stripe objects.
const (
	MetadataUserID = "lana_user_id"
	MetadataTier   = "lana_tier"
)

// monthlyAmount is the one-off charge, in MXN cents, for a card payment of
// one month of a tier.
var monthlyAmount = map[models.SubscriptionTier]int64{
	models.TierPro:      9900,
	models.TierBusiness: 29900,
}

// AmountFor returns the monthly price of a paid tier in cents.
func AmountFor(tier models.SubscriptionTier) (int64, bool) {
	a, ok := monthlyAmount[tier]
	return a, ok
}

// Prices maps paid tiers to Stripe price ids.
type Prices struct {
	Pro      string
	Business string
}

// For returns the price id of a paid tier.
func (p Prices) For(tier models.SubscriptionTier) (string, bool) {
	switch tier {
	case models.TierPro:
		return p.Pro, p.Pro != ""
	case models.TierBusiness:
		return p.Business, p.Business != ""
	}
	return "", false
}

// TierOf returns the tier sold under priceID, or "" when unknown.
func (p Prices) TierOf(priceID string) models.SubscriptionTier {
	switch {
	case priceID == "":
		return ""
	case priceID == p.Pro:
		return models.TierPro
	case priceID == p.Business:
		return models.TierBusiness
	}
	return ""
}

// CheckoutResult holds the result of creating a checkout session.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// PaymentIntentResult carries what the card element needs.
type PaymentIntentResult struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Gateway is the payment processor.
type Gateway interface {
	GetOrCreateCustomer(email, userID string) (string, error)
	CreateCheckoutSession(customerID, userID, priceID string, tier models.SubscriptionTier, successURL, cancelURL string) (*CheckoutResult, error)
	CreatePaymentIntent(customerID, userID string, tier models.SubscriptionTier, amount int64, currency string) (*PaymentIntentResult, error)
}

// StripeGateway wraps the Stripe API. The secret key is process-wide in
// stripe-go and never leaves the server.
type StripeGateway struct{}

// NewStripeGateway sets the Stripe secret key and returns the gateway.
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

// GetOrCreateCustomer finds a Stripe customer by email or creates one with
// the user id in its metadata.
func (g *StripeGateway) GetOrCreateCustomer(email, userID string) (string, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = fmt.Sprintf("email:'%s'", strings.ReplaceAll(email, "'", `\'`))
	iter := customer.Search(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("search customers: %w", err)
	}

	cust, err := customer.New(&stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{MetadataUserID: userID},
	})
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription checkout for one tier.
func (g *StripeGateway) CreateCheckoutSession(customerID, userID, priceID string, tier models.SubscriptionTier, successURL, cancelURL string) (*CheckoutResult, error) {
	metadata := map[string]string{
		MetadataUserID: userID,
		MetadataTier:   string(tier),
	}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata:   metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

// CreatePaymentIntent creates a card payment for one month of a tier.
func (g *StripeGateway) CreatePaymentIntent(customerID, userID string, tier models.SubscriptionTier, amount int64, currency string) (*PaymentIntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(MetadataUserID, userID)
	params.AddMetadata(MetadataTier, string(tier))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &PaymentIntentResult{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}
