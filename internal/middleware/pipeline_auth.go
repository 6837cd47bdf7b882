package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "lana/internal/errors"
)

// PipelineAuthMiddleware guards the scheduled-job endpoints, such as the
// recurring sweep triggered by cmd/sweeper, with the shared X-API-Key. An
// empty key disables the endpoints instead of leaving them open.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	want := []byte(apiKey)
	return func(c *gin.Context) {
		if len(want) == 0 {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-Key")), want) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
