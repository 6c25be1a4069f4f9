// Package orchestrator is the stateful controller over an otherwise
// stateless process: it owns run/stage lifecycle transitions and drives the
// fixed four-stage DAG forward by publishing the next stage's `.requested`
// event after each stage's completion is durably recorded. Grounded on
// original_source's orchestrator_service/main.py (create_run, pubsub_push)
// and spec.md §4.2's state table.
package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/httpapi"
	"github.com/clinicore/scribeflow/internal/httpapi/response"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/store"
)

// eventPublisher is the narrow slice of *messaging.Publisher the controller
// calls, so tests can substitute a fake without a live Pub/Sub client.
type eventPublisher interface {
	Publish(ctx context.Context, env domain.Envelope) error
}

// Controller holds the dependencies both orchestrator endpoints share.
type Controller struct {
	log       *logger.Logger
	store     *store.Store
	publisher eventPublisher
	runTTL    time.Duration
}

func NewController(log *logger.Logger, st *store.Store, pub eventPublisher, runTTL time.Duration) *Controller {
	if runTTL <= 0 {
		runTTL = domain.DefaultIdempotencyTTL
	}
	return &Controller{
		log:       log.With("component", "orchestrator"),
		store:     st,
		publisher: pub,
		runTTL:    runTTL,
	}
}

type createRunRequest struct {
	Bucket        string `json:"bucket" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Generation    string `json:"generation" binding:"required"`
	Session       string `json:"session,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type createRunResponse struct {
	RunID   string `json:"run_id"`
	Created bool   `json:"created"`
}

// CreateRun is the `/run` handler: spec.md §4.2's create-run transaction
// followed by a publish of transcribe.requested, but only when this call
// actually created the run — a replayed call against an existing run is a
// pure no-op, matching the idempotent-create contract the ingestion gateway
// depends on.
func (ctl *Controller) CreateRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		ref := domain.InputRef{Bucket: req.Bucket, Name: req.Name, Generation: req.Generation, Session: req.Session}
		if err := ref.Validate(); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		correlationID := req.CorrelationID
		if correlationID == "" {
			correlationID = c.GetString("correlation_id")
		}

		ctx := c.Request.Context()
		run, created, err := ctl.store.CreateRunIfAbsent(ctx, ref, correlationID, ctl.runTTL)
		if err != nil {
			httpapi.RespondForError(c, retry.Retryable("create run", err))
			return
		}

		if created {
			env := domain.Envelope{
				Version:       1,
				EventType:     domain.EventTranscribeRequested,
				RunID:         run.RunID,
				Step:          domain.StageTranscribe,
				Input:         ref,
				CorrelationID: correlationID,
				Timestamp:     time.Now(),
			}
			if err := ctl.publisher.Publish(ctx, env); err != nil {
				ctl.log.Error("publish transcribe.requested failed", "run_id", run.RunID, "error", err)
				httpapi.RespondForError(c, err)
				return
			}
			ctl.log.Info("run created", "run_id", run.RunID, "correlation_id", correlationID)
		} else {
			ctl.log.Debug("run already exists", "run_id", run.RunID, "status", string(run.Status))
		}

		response.RespondOK(c, createRunResponse{RunID: run.RunID, Created: created})
	}
}
