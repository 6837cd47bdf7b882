package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lana/internal/dates"
	"lana/internal/services"
)

// CalendarHandler serves the month calendar.
type CalendarHandler struct {
	calendarService services.CalendarServicer
	settingsService services.SettingsServicer
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(calendarService services.CalendarServicer, settingsService services.SettingsServicer) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService, settingsService: settingsService}
}

// GetMonth returns every day of a month with its transactions and the
// recurring occurrences that fall on it.
// @Summary     Get calendar month
// @Description Per day: transactions, recurring occurrences (flagged when already materialized) and totals
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       month query string false "Month (YYYY-MM), default current month in the user's timezone"
// @Success     200 {object} services.CalendarMonth "Calendar month"
// @Failure     400 {object} ErrorResponse "Invalid month"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /calendar [get]
func (h *CalendarHandler) GetMonth(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, err := parseMonthQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if month == nil {
		prefs, err := h.settingsService.GetSettings(userID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		first := dates.FirstOfMonth(prefs.Today())
		month = &first
	}

	result, err := h.calendarService.GetMonth(userID, *month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
