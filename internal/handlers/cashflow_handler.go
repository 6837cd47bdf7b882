package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/services"
)

// CashflowHandler serves the cash-flow chart.
type CashflowHandler struct {
	cashflowService services.CashflowServicer
}

// NewCashflowHandler creates a new CashflowHandler.
func NewCashflowHandler(cashflowService services.CashflowServicer) *CashflowHandler {
	return &CashflowHandler{cashflowService: cashflowService}
}

// GetCashflow returns income and expense per period.
// @Summary     Get cash flow
// @Description Income and expense totals per bucket ending with the current period. The last bucket carries a run-rate forecast on plans that include it.
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       granularity query string false "day, week, month (default) or year"
// @Success     200 {object} services.CashflowReport "Cash-flow buckets"
// @Failure     400 {object} ErrorResponse "Invalid granularity"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cashflow [get]
func (h *CashflowHandler) GetCashflow(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	granularity, err := dates.ParseGranularity(c.DefaultQuery("granularity", string(dates.Month)))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	report, err := h.cashflowService.GetCashflow(userID, granularity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
