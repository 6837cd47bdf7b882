package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
	"lana/internal/logger"
	"lana/internal/tiers"
)

// LimitsLookup returns the tier limits of a user.
type LimitsLookup func(userID string) (*tiers.Limits, error)

// RequireFeature rejects requests from users whose tier does not include
// feature. It must run after AuthMiddleware.
func RequireFeature(feature tiers.Feature, lookup LimitsLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}

		limits, err := lookup(userID)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				abortWithError(c, appErr)
				return
			}
			logger.Get().Errorw("tier lookup failed", "user_id", userID, "error", err)
			abortWithError(c, apperrors.ErrInternalServer)
			return
		}
		if !limits.Allows(feature) {
			abortWithError(c, apperrors.ErrFeatureNotAvailable)
			return
		}
		c.Next()
	}
}
