package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/httpapi/response"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/store"
)

// OrchestratorCaller is the subset of OrchestratorClient the gateway calls,
// narrowed so tests can substitute a fake without a live HTTP endpoint.
type OrchestratorCaller interface {
	CreateRun(ctx context.Context, ref domain.InputRef, correlationID, idemKey string) (RunResult, error)
}

type gcsNotification struct {
	Bucket     string            `json:"bucket"`
	Name       string            `json:"name"`
	Generation string            `json:"generation"`
	Metadata   map[string]string `json:"metadata"`
}

// Gateway is the ingestion entrypoint: push-auth verified upstream in
// middleware, it derives the deterministic idempotency key, fast-peeks the
// dedupe cache, then calls the orchestrator under a bounded concurrency
// limit, matching original_source's ingest_worker/main.py pubsub_push.
type Gateway struct {
	log          *logger.Logger
	store        *store.Store
	cache        *DedupeCache
	orchestrator OrchestratorCaller
	sem          *semaphore.Weighted
	idemTTL      time.Duration
}

func NewGateway(log *logger.Logger, st *store.Store, cache *DedupeCache, orch OrchestratorCaller, concurrency int64, idemTTL time.Duration) *Gateway {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Gateway{
		log:          log.With("component", "ingestion_gateway"),
		store:        st,
		cache:        cache,
		orchestrator: orch,
		sem:          semaphore.NewWeighted(concurrency),
		idemTTL:      idemTTL,
	}
}

func (g *Gateway) PushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		push, err := messaging.DecodeRawPush(c.Request.Body)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_pubsub_envelope", err)
			return
		}

		var note gcsNotification
		if err := json.Unmarshal(push.Data, &note); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_notification_payload", err)
			return
		}
		sessionID := note.Metadata["session_id"]
		ref := domain.InputRef{Bucket: note.Bucket, Name: note.Name, Generation: note.Generation, Session: sessionID}
		if verr := ref.Validate(); verr != nil {
			response.RespondError(c, http.StatusBadRequest, "missing_gcs_fields", verr)
			return
		}

		idemKey := domain.IdemKey(ref)
		correlationID := c.GetString("correlation_id")

		g.log.Info("ingestion received", "message_id", push.MessageID, "idem_key", idemKey, "bucket", note.Bucket, "name", note.Name)

		if g.cache != nil {
			seen, cerr := g.cache.SeenRecently(c.Request.Context(), idemKey)
			if cerr != nil {
				g.log.Warn("dedupe cache peek failed, falling through to transactional upsert", "idem_key", idemKey, "error", cerr)
			} else if seen {
				g.log.Debug("duplicate skip via dedupe cache", "idem_key", idemKey)
				c.Status(http.StatusNoContent)
				return
			}
		}

		outcome, err := g.store.UpsertIngestion(c.Request.Context(), idemKey, g.idemTTL)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "ingestion_upsert_failed", err)
			return
		}
		if outcome.Duplicate {
			g.log.Debug("duplicate skip via ingestion record", "idem_key", idemKey, "status", string(outcome.Record.Status))
			c.Status(http.StatusNoContent)
			return
		}

		if err := g.sem.Acquire(c.Request.Context(), 1); err != nil {
			response.RespondError(c, http.StatusInternalServerError, "concurrency_acquire_failed", err)
			return
		}
		defer g.sem.Release(1)

		start := time.Now()
		result, err := g.orchestrator.CreateRun(c.Request.Context(), ref, correlationID, idemKey)
		duration := time.Since(start)

		if err != nil {
			g.handleOrchestratorError(c, idemKey, err, duration)
			return
		}

		runID := domain.RunID(ref)
		if merr := g.store.MarkIngestionDone(c.Request.Context(), idemKey, runID); merr != nil {
			g.log.Warn("failed to mark ingestion done", "idem_key", idemKey, "error", merr)
		}
		if g.cache != nil {
			_ = g.cache.MarkSeen(c.Request.Context(), idemKey)
		}
		g.log.Info("ingestion done", "idem_key", idemKey, "duration_ms", duration.Milliseconds(), "outcome", result.FinalOutcome)
		c.Status(http.StatusNoContent)
	}
}

// handleOrchestratorError mirrors the original's two exit paths: a
// permanent failure is acked (204, no Pub/Sub redelivery) since retrying
// can never succeed; a transient failure returns 500 so Pub/Sub redelivers
// with backoff and eventually routes to the dead-letter topic.
func (g *Gateway) handleOrchestratorError(c *gin.Context, idemKey string, err error, duration time.Duration) {
	ctx := c.Request.Context()
	switch {
	case retry.IsPermanent(err):
		if merr := g.store.MarkIngestionFailedPermanent(ctx, idemKey, err.Error()); merr != nil {
			g.log.Warn("failed to mark ingestion permanent failure", "idem_key", idemKey, "error", merr)
		}
		g.log.Error("ingestion failed permanently", "idem_key", idemKey, "error", err, "duration_ms", duration.Milliseconds())
		c.Status(http.StatusNoContent)
	default:
		if merr := g.store.MarkIngestionFailedTransient(ctx, idemKey, err.Error()); merr != nil {
			g.log.Warn("failed to mark ingestion transient failure", "idem_key", idemKey, "error", merr)
		}
		g.log.Error("ingestion failed transiently", "idem_key", idemKey, "error", err, "duration_ms", duration.Milliseconds())
		response.RespondError(c, http.StatusInternalServerError, "orchestrator_transient_failure", err)
	}
}
