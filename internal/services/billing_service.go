package services

import (
	"errors"

	"gorm.io/gorm"

	"lana/internal/billing"
	apperrors "lana/internal/errors"
	"lana/internal/logger"
	"lana/internal/models"
)

// billingCurrency is the currency every tier is sold in.
const billingCurrency = "mxn"

// billingService sells tiers and applies processor webhooks.
type billingService struct {
	db            *gorm.DB
	gateway       billing.Gateway
	prices        billing.Prices
	webhookSecret string
}

// NewBillingService creates a new BillingServicer. gateway may be nil when
// Stripe is not configured.
func NewBillingService(db *gorm.DB, gateway billing.Gateway, prices billing.Prices, webhookSecret string) BillingServicer {
	return &billingService{
		db:            db,
		gateway:       gateway,
		prices:        prices,
		webhookSecret: webhookSecret,
	}
}

// customerFor returns the user's Stripe customer, creating and storing it on
// first use.
func (s *billingService) customerFor(user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	id, err := s.gateway.GetOrCreateCustomer(user.Email, user.ID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrProviderError, err)
	}
	if err := s.db.Model(user).Update("stripe_customer_id", id).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.StripeCustomerID = id
	return id, nil
}

// CreateCheckoutSession starts a hosted checkout for a paid tier.
func (s *billingService) CreateCheckoutSession(userID string, tier models.SubscriptionTier, successURL, cancelURL string) (*CheckoutResponse, error) {
	if s.gateway == nil {
		return nil, apperrors.ErrProviderNotConfigured
	}
	priceID, ok := s.prices.For(tier)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tier is not available for purchase")
	}
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.customerFor(user)
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.CreateCheckoutSession(customerID, user.ID, priceID, tier, successURL, cancelURL)
	if err != nil {
		logger.Get().Errorw("checkout session failed", "user_id", userID, "tier", tier, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrProviderError, err)
	}
	return &CheckoutResponse{URL: res.URL, SessionID: res.SessionID}, nil
}

// CreatePaymentIntent creates a one-month card charge for a paid tier.
func (s *billingService) CreatePaymentIntent(userID string, tier models.SubscriptionTier) (*PaymentIntentResponse, error) {
	if s.gateway == nil {
		return nil, apperrors.ErrProviderNotConfigured
	}
	amount, ok := billing.AmountFor(tier)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tier is not available for purchase")
	}
	user, err := getUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.customerFor(user)
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.CreatePaymentIntent(customerID, user.ID, tier, amount, billingCurrency)
	if err != nil {
		logger.Get().Errorw("payment intent failed", "user_id", userID, "tier", tier, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrProviderError, err)
	}
	return &PaymentIntentResponse{
		ID:           res.ID,
		ClientSecret: res.ClientSecret,
		Amount:       res.Amount,
		Currency:     res.Currency,
	}, nil
}

// HandleWebhook verifies a Stripe event and applies the subscription change
// it carries. Events for unknown users are acknowledged and ignored.
func (s *billingService) HandleWebhook(payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return apperrors.ErrProviderNotConfigured
	}
	event, err := billing.VerifyEvent(payload, signature, s.webhookSecret)
	if err != nil {
		logger.Get().Warnw("rejected webhook", "error", err)
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid webhook signature")
	}

	update, err := billing.ParseEvent(event, s.prices)
	if err != nil {
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed webhook event"), err)
	}
	if update == nil {
		return nil
	}

	user, err := s.findSubscriber(update)
	if err != nil {
		return err
	}
	if user == nil {
		logger.Get().Warnw("webhook for unknown user",
			"event_id", event.ID,
			"event_type", update.EventType,
			"customer_id", update.CustomerID,
		)
		return nil
	}

	changes := map[string]any{}
	if update.Tier != "" {
		changes["subscription_tier"] = update.Tier
	}
	if update.Status != "" {
		changes["subscription_status"] = update.Status
	}
	if update.CustomerID != "" {
		changes["stripe_customer_id"] = update.CustomerID
	}
	if update.SubscriptionID != "" {
		changes["stripe_subscription_id"] = update.SubscriptionID
	}
	switch {
	case update.CurrentPeriodEnd != nil:
		changes["current_period_end"] = *update.CurrentPeriodEnd
	case update.SubscriptionID != "":
		// A subscription is governed by its status, not a prepaid period.
		changes["current_period_end"] = nil
	}
	if len(changes) == 0 {
		return nil
	}
	if err := s.db.Model(user).Updates(changes).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("subscription updated",
		"user_id", user.ID,
		"event_type", update.EventType,
		"tier", update.Tier,
		"status", update.Status,
	)
	return nil
}

func (s *billingService) findSubscriber(u *billing.Update) (*models.User, error) {
	var user models.User
	var err error
	switch {
	case u.UserID != "":
		err = s.db.Where("id = ?", u.UserID).First(&user).Error
	case u.CustomerID != "":
		err = s.db.Where("stripe_customer_id = ?", u.CustomerID).First(&user).Error
	default:
		return nil, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if u.UserID != "" && u.CustomerID != "" {
			return s.findSubscriber(&billing.Update{CustomerID: u.CustomerID})
		}
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}
