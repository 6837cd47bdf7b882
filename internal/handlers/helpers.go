package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"lana/internal/dates"
	apperrors "lana/internal/errors"
	"lana/internal/logger"
	"lana/internal/services"
	"lana/internal/uuid"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
//
//nolint:unparam // param is intentionally generic for reuse across handlers with different path params
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// userLocation returns the timezone from the user's settings.
func userLocation(settingsService services.SettingsServicer, userID string) (*time.Location, error) {
	prefs, err := settingsService.GetSettings(userID)
	if err != nil {
		return nil, err
	}
	return prefs.Location(), nil
}

// parseDate reads a date sent by the client as the calendar day it denotes
// in loc. Empty input yields nil.
func parseDate(s string, loc *time.Location, field string) (*dates.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := dates.Parse(s, loc)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+field+": "+err.Error())
	}
	return &d, nil
}

// parseDateRange reads the optional from/to query parameters.
func parseDateRange(c *gin.Context, loc *time.Location) (from, to *dates.Date, err error) {
	if from, err = parseDate(c.Query("from"), loc, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = parseDate(c.Query("to"), loc, "to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// parseBoolQuery reads an optional true/false query parameter.
func parseBoolQuery(c *gin.Context, key string) (*bool, error) {
	switch c.Query(key) {
	case "":
		return nil, nil
	case "true":
		b := true
		return &b, nil
	case "false":
		b := false
		return &b, nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, key+" must be 'true' or 'false'")
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// MessageResponse represents a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
