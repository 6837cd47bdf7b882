package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
	"lana/internal/models"
	"lana/internal/pagination"
	"lana/internal/services"
)

// RecurringHandler handles recurring rule requests.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	auditService     services.AuditServicer
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer, auditService services.AuditServicer) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService, auditService: auditService}
}

// CreateRecurringRuleRequest represents the request payload for a new rule.
// Days past the end of a short month fall on its last day.
type CreateRecurringRuleRequest struct {
	Type        models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount      int64                  `json:"amount" binding:"required,gt=0"`
	Category    string                 `json:"category" binding:"max=100"`
	Description string                 `json:"description" binding:"max=500"`
	DayOfMonth  int                    `json:"day_of_month" binding:"required,min=1,max=31"`
}

// UpdateRecurringRuleRequest represents the request payload for updating a rule.
type UpdateRecurringRuleRequest struct {
	Amount      *int64  `json:"amount" binding:"omitempty,gt=0"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	DayOfMonth  *int    `json:"day_of_month" binding:"omitempty,min=1,max=31"`
	IsActive    *bool   `json:"is_active"`
}

// CreateRule handles the creation of a recurring rule.
// @Summary     Create a recurring rule
// @Description Create a monthly income or expense rule
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRuleRequest true "Rule details"
// @Success     201 {object} models.RecurringRule "Rule created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Plan limit reached"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [post]
func (h *RecurringHandler) CreateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.recurringService.CreateRule(userID, services.RecurringRuleInput{
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		DayOfMonth:  req.DayOfMonth,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING_RULE", "recurring_rule", rule.ID, c.ClientIP(),
		map[string]interface{}{"type": rule.Type, "amount": rule.Amount, "day_of_month": rule.DayOfMonth})

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// GetRules handles listing recurring rules.
// @Summary     Get recurring rules
// @Description Get a paginated list of the user's recurring rules
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RecurringRule] "Paginated rules"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [get]
func (h *RecurringHandler) GetRules(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.recurringService.GetUserRules(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRuleByID handles retrieving a single rule.
// @Summary     Get recurring rule
// @Description Get a recurring rule by ID
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} models.RecurringRule "Rule"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [get]
func (h *RecurringHandler) GetRuleByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	rule, err := h.recurringService.GetRuleByID(userID, ruleID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// UpdateRule handles updating a rule.
// @Summary     Update recurring rule
// @Description Update a recurring rule. Already materialized transactions are not changed.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                     true "Rule ID"
// @Param       request body UpdateRecurringRuleRequest true "Fields to update"
// @Success     200 {object} models.RecurringRule "Updated rule"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Plan limit reached"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [put]
func (h *RecurringHandler) UpdateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecurringRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.recurringService.UpdateRule(userID, ruleID, services.UpdateRecurringRuleInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		DayOfMonth:  req.DayOfMonth,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECURRING_RULE", "recurring_rule", ruleID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule handles deleting a rule.
// @Summary     Delete recurring rule
// @Description Delete a recurring rule. Transactions it produced are kept.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rule ID"
// @Success     200 {object} MessageResponse "Rule deleted"
// @Failure     400 {object} ErrorResponse "Invalid rule ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [delete]
func (h *RecurringHandler) DeleteRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.recurringService.DeleteRule(userID, ruleID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RECURRING_RULE", "recurring_rule", ruleID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Recurring rule deleted successfully"})
}

// Materialize creates the due transactions of the user's rules.
// @Summary     Materialize recurring rules
// @Description Create at most one transaction per due rule, dated on its most recent occurrence in the user's timezone. Safe to call repeatedly.
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} recurring.RunResult "Run counts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/materialize [post]
func (h *RecurringHandler) Materialize(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.recurringService.MaterializeForUser(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
