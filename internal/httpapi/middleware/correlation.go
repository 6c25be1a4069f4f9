// Package middleware carries request-scoped correlation/trace context and
// push-auth verification across every internal HTTP hop, grounded on the
// teacher's internal/http/middleware package.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderIdempotency   = "X-Idempotency-Key"
)

// AttachCorrelation propagates or mints x-correlation-id on every internal
// hop, matching SPEC_FULL.md's SUPPLEMENTED FEATURES #4.
func AttachCorrelation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderCorrelationID))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("correlation_id", id)
		c.Writer.Header().Set(HeaderCorrelationID, id)
		if key := strings.TrimSpace(c.GetHeader(HeaderIdempotency)); key != "" {
			c.Set("idempotency_key", key)
		}
		c.Next()
	}
}
