package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/services"
)

// maxWebhookBytes matches the largest event body Stripe sends.
const maxWebhookBytes = 65536

// BillingHandler handles subscription purchases and Stripe webhooks.
type BillingHandler struct {
	billingService services.BillingServicer
	auditService   services.AuditServicer
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService services.BillingServicer, auditService services.AuditServicer) *BillingHandler {
	return &BillingHandler{billingService: billingService, auditService: auditService}
}

// CheckoutRequest represents the request payload for a hosted checkout.
type CheckoutRequest struct {
	Tier       models.SubscriptionTier `json:"tier" binding:"required,paid_tier"`
	SuccessURL string                  `json:"success_url" binding:"required,url"`
	CancelURL  string                  `json:"cancel_url" binding:"required,url"`
}

// PaymentIntentRequest represents the request payload for a card charge.
type PaymentIntentRequest struct {
	Tier models.SubscriptionTier `json:"tier" binding:"required,paid_tier"`
}

// CreateCheckoutSession starts a Stripe Checkout for a paid tier.
// @Summary     Start checkout
// @Description Create a Stripe Checkout session for the pro or business tier
// @Tags        billing
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CheckoutRequest true "Tier and redirect URLs"
// @Success     200 {object} services.CheckoutResponse "Checkout session"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider error"
// @Failure     503 {object} ErrorResponse "Billing not configured"
// @Router      /billing/checkout [post]
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	session, err := h.billingService.CreateCheckoutSession(userID, req.Tier, req.SuccessURL, req.CancelURL)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "START_CHECKOUT", "subscription", session.SessionID, c.ClientIP(),
		map[string]interface{}{"tier": req.Tier})

	c.JSON(http.StatusOK, session)
}

// CreatePaymentIntent creates a Stripe PaymentIntent for a paid tier.
// @Summary     Create payment intent
// @Description Create a one-month card charge for the pro or business tier
// @Tags        billing
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PaymentIntentRequest true "Tier"
// @Success     200 {object} services.PaymentIntentResponse "Payment intent"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Provider error"
// @Failure     503 {object} ErrorResponse "Billing not configured"
// @Router      /billing/payment-intent [post]
func (h *BillingHandler) CreatePaymentIntent(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	intent, err := h.billingService.CreatePaymentIntent(userID, req.Tier)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_PAYMENT_INTENT", "subscription", intent.ID, c.ClientIP(),
		map[string]interface{}{"tier": req.Tier, "amount": intent.Amount})

	c.JSON(http.StatusOK, intent)
}

// Webhook receives Stripe events. The body must be read unparsed so the
// signature can be checked against it.
// @Summary     Stripe webhook
// @Description Verify and apply a Stripe subscription event
// @Tags        billing
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "Stripe signature"
// @Success     200 {object} MessageResponse "Event received"
// @Failure     400 {object} ErrorResponse "Invalid signature or event"
// @Failure     503 {object} ErrorResponse "Billing not configured"
// @Router      /billing/webhook [post]
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}

	if err := h.billingService.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Event received"})
}
