package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS matches the teacher's cross-origin policy: internal push/task
// endpoints don't strictly need it, but /run and /health are reasonable to
// expose behind the same standard the rest of the stack already uses.
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Authorization", "Content-Type", HeaderCorrelationID, HeaderIdempotency}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
