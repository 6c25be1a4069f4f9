package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/clinicore/scribeflow/internal/httpapi/middleware"
	"github.com/clinicore/scribeflow/internal/httpapi/response"
)

// NewBaseEngine builds the gin engine every binary starts from: otel span
// middleware, correlation-id propagation, CORS, and a liveness endpoint.
// Callers attach their own route groups on top.
func NewBaseEngine(serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middleware.AttachCorrelation())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		response.RespondOK(c, gin.H{"status": "ok"})
	})
	return r
}
