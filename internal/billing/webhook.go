package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"lana/internal/models"
)

// Handled webhook event types.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentFailed       = "invoice.payment_failed"
	EventPaymentSucceeded    = "payment_intent.succeeded"
)

// VerifyEvent checks the Stripe-Signature header and decodes the event.
func VerifyEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook: %w", err)
	}
	return event, nil
}

// Update is the change a webhook event makes to a user's subscription. The
// user is found by UserID, or by CustomerID when the event carries no
// metadata. Nil or empty fields are left unchanged.
type Update struct {
	EventType        string
	UserID           string
	CustomerID       string
	SubscriptionID   string
	Tier             models.SubscriptionTier
	Status           models.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

type checkoutSession struct {
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Items    struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoice struct {
	Customer string `json:"customer"`
}

type paymentIntent struct {
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// ParseEvent maps a verified event to an Update. Unhandled event types
// return nil without error.
func ParseEvent(event stripe.Event, prices Prices) (*Update, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	kind := string(event.Type)
	raw := event.Data.Raw

	switch kind {
	case EventCheckoutCompleted:
		var s checkoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", kind, err)
		}
		tier := models.SubscriptionTier(s.Metadata[MetadataTier])
		if tier == "" {
			tier = models.TierPro
		}
		return &Update{
			EventType:      kind,
			UserID:         s.Metadata[MetadataUserID],
			CustomerID:     s.Customer,
			SubscriptionID: s.Subscription,
			Tier:           tier,
			Status:         models.SubscriptionActive,
		}, nil

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("parse %s: %w", kind, err)
		}
		u := &Update{
			EventType:      kind,
			UserID:         sub.Metadata[MetadataUserID],
			CustomerID:     sub.Customer,
			SubscriptionID: sub.ID,
		}
		if kind == EventSubscriptionDeleted {
			u.Tier = models.TierFree
			u.Status = models.SubscriptionCanceled
			return u, nil
		}
		u.Status = MapStatus(sub.Status)
		if len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			u.Tier = prices.TierOf(item.Price.ID)
			if item.CurrentPeriodEnd > 0 {
				end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
				u.CurrentPeriodEnd = &end
			}
		}
		if u.Tier == "" {
			u.Tier = models.SubscriptionTier(sub.Metadata[MetadataTier])
		}
		return u, nil

	case EventPaymentFailed:
		var inv invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("parse %s: %w", kind, err)
		}
		return &Update{
			EventType:  kind,
			CustomerID: inv.Customer,
			Status:     models.SubscriptionPastDue,
		}, nil

	case EventPaymentSucceeded:
		var pi paymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("parse %s: %w", kind, err)
		}
		tier := models.SubscriptionTier(pi.Metadata[MetadataTier])
		if tier == "" {
			return nil, nil
		}
		end := time.Unix(event.Created, 0).UTC().AddDate(0, 1, 0)
		return &Update{
			EventType:        kind,
			UserID:           pi.Metadata[MetadataUserID],
			CustomerID:       pi.Customer,
			Tier:             tier,
			Status:           models.SubscriptionActive,
			CurrentPeriodEnd: &end,
		}, nil
	}
	return nil, nil
}

// MapStatus maps a Stripe subscription status to ours.
func MapStatus(s string) models.SubscriptionStatus {
	switch stripe.SubscriptionStatus(s) {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return models.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionCanceled
	}
	return models.SubscriptionNone
}
