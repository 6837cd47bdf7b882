package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
	"lana/internal/services"
)

// SettingsHandler handles the per-user settings document.
type SettingsHandler struct {
	settingsService services.SettingsServicer
	auditService    services.AuditServicer
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService services.SettingsServicer, auditService services.AuditServicer) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, auditService: auditService}
}

// UpdateSettingsRequest holds the fields to change. Absent fields keep their
// stored value.
type UpdateSettingsRequest struct {
	Currency             *string `json:"currency" binding:"omitempty,iso4217"`
	Timezone             *string `json:"timezone" binding:"omitempty,timezone"`
	WeekStart            *string `json:"week_start" binding:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	BudgetWarningPercent *int    `json:"budget_warning_percent" binding:"omitnil,min=1,max=100"`
	LastRoute            *string `json:"last_route" binding:"omitempty,startswith=/,max=200"`
	DisplayInitial       *string `json:"display_initial" binding:"omitempty,max=4"`
}

// GetSettings returns the user's settings, migrated to the current schema.
// @Summary     Get settings
// @Description Get the user's settings. Stored documents from older versions are migrated on read.
// @Tags        settings
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} settings.Settings "Settings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	prefs, err := h.settingsService.GetSettings(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": prefs})
}

// UpdateSettings merges the given fields into the user's settings.
// @Summary     Update settings
// @Description Update timezone, currency, week start, budget warning threshold or UI state
// @Tags        settings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateSettingsRequest true "Fields to change"
// @Success     200 {object} settings.Settings "Updated settings"
// @Failure     400 {object} ErrorResponse "Invalid settings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidSettings, err.Error()))
		return
	}

	current, err := h.settingsService.GetSettings(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	next := *current
	if req.Currency != nil {
		next.Currency = *req.Currency
	}
	if req.Timezone != nil {
		next.Timezone = *req.Timezone
	}
	if req.WeekStart != nil {
		next.WeekStart = *req.WeekStart
	}
	if req.BudgetWarningPercent != nil {
		next.BudgetWarningPercent = *req.BudgetWarningPercent
	}
	if req.LastRoute != nil {
		next.LastRoute = *req.LastRoute
	}
	if req.DisplayInitial != nil {
		next.DisplayInitial = *req.DisplayInitial
	}

	updated, err := h.settingsService.UpdateSettings(userID, next)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_SETTINGS", "settings", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"settings": updated})
}
