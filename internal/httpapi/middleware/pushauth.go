package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scribeflow/internal/idtoken"
	"github.com/clinicore/scribeflow/internal/logger"
)

// RequirePushAuth verifies the bearer OIDC token on push endpoints against
// verifier's JWKS + issuer allowlist, matching original_source's
// _verify_pubsub_auth. When enabled=false (local/dev), verification is
// skipped entirely — the original's settings.require_pubsub_auth toggle.
func RequirePushAuth(enabled bool, verifier *idtoken.Verifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing bearer token", "code": "unauthorized"},
			})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if _, err := verifier.Verify(c.Request.Context(), token); err != nil {
			log.Warn("push auth verification failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid push auth token", "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}
