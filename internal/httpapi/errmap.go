package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scribeflow/internal/httpapi/response"
	"github.com/clinicore/scribeflow/internal/retry"
)

// RespondForError surfaces a stage/worker-boundary error as 503 (retryable)
// or 422 (permanent), per spec.md §7's two-way taxonomy. Anything that isn't
// explicitly classified is treated as retryable — "bias to safety."
func RespondForError(c *gin.Context, err error) {
	switch {
	case retry.IsPermanent(err):
		response.RespondError(c, http.StatusUnprocessableEntity, "permanent_error", err)
	default:
		response.RespondError(c, http.StatusServiceUnavailable, "retryable_error", err)
	}
}
