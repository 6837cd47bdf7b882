package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lana/internal/logger"
	"lana/internal/services"
)

// PipelineHandler serves endpoints called by scheduled jobs with the
// pipeline API key instead of a user token.
type PipelineHandler struct {
	recurringService services.RecurringServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(recurringService services.RecurringServicer) *PipelineHandler {
	return &PipelineHandler{recurringService: recurringService}
}

// SweepRecurring materializes due rules for every user.
// @Summary     Sweep recurring rules
// @Description Materialize due recurring rules for all users. Per-rule failures are counted, not returned.
// @Tags        pipeline
// @Produce     json
// @Security    PipelineKey
// @Success     200 {object} recurring.RunResult "Run counts"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Failure     503 {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/recurring/sweep [post]
func (h *PipelineHandler) SweepRecurring(c *gin.Context) {
	result, err := h.recurringService.SweepAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Get().Infow("recurring sweep finished",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)

	c.JSON(http.StatusOK, result)
}
