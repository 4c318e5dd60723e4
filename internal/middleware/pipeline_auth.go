package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
)

// PipelineAuthMiddleware guards service-to-service endpoints with a shared
// key sent in X-API-Key. With no key configured every request is refused.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-Key")), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
