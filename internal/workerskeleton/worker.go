// Package workerskeleton is the single capability interface spec.md §9 calls
// for: one generic type parameterized by (input type, output type, business
// function, artifact path) instantiated four times — transcribe, redact,
// audit, soap. Grounded on spec.md §4.3 and the retry/idempotency shape of
// original_source's transcribe_service/src/routers/events.py.
package workerskeleton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scribeflow/internal/artifactstore"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/httpapi"
	"github.com/clinicore/scribeflow/internal/httpapi/response"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/taskqueue"
)

// BusinessFunc is the stage-specific model/detector call. Implementations
// classify their own errors as RetryableError/PermanentError per spec.md §7;
// anything unclassified is treated as retryable by execute's caller.
type BusinessFunc[In any, Out any] func(ctx context.Context, runID string, in In) (Out, error)

// InputLoader loads a stage's input from the envelope — either a predecessor
// artifact (redact/audit/soap) or the raw object-store reference
// (transcribe). Missing input must return a PermanentError.
type InputLoader[In any] func(ctx context.Context, env domain.Envelope) (In, error)

// SummaryFunc extracts the small summary fields a completion envelope
// carries alongside the artifact reference (e.g. audit's hipaa_pass).
type SummaryFunc[Out any] func(out Out) map[string]any

type Worker[In any, Out artifactstore.Validator] struct {
	Stage         domain.Stage
	Artifacts     *artifactstore.Store
	Publisher     *messaging.Publisher
	Tasks         *taskqueue.Client
	Log           *logger.Logger
	TaskTargetURL string
	LoadInput     InputLoader[In]
	Business      BusinessFunc[In, Out]
	Summary       SummaryFunc[Out]
	Timeout       time.Duration
}

// PushReceiver is the `/events/pubsub` handler: verify auth happens in
// middleware upstream of this handler, decode envelope, enqueue a
// deterministically-named task, ack. Unrecognized event types ack-and-ignore
// rather than erroring — a push subscription may carry events meant for a
// different stage if topics are ever shared.
func (w *Worker[In, Out]) PushReceiver() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "read_body_failed", err)
			return
		}
		env, err := messaging.DecodePush(body)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_envelope", err)
			return
		}
		if env.EventType != domain.RequestedEventFor(w.Stage) {
			w.Log.Debug("ignoring unrecognized event type", "event_type", string(env.EventType), "stage", string(w.Stage))
			c.Status(http.StatusOK)
			return
		}

		taskBody, err := json.Marshal(env)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "marshal_task_body_failed", err)
			return
		}
		if err := w.Tasks.Enqueue(c.Request.Context(), w.Stage, env.RunID, w.TaskTargetURL, taskBody); err != nil {
			response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// TaskExecutor is the `/tasks/<stage>` handler implementing spec.md §4.3's
// seven-step algorithm.
func (w *Worker[In, Out]) TaskExecutor() gin.HandlerFunc {
	return func(c *gin.Context) {
		timeout := w.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		var env domain.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_task_body", err)
			return
		}
		if err := env.Validate(); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_task_body", err)
			return
		}

		if _, err := w.execute(ctx, env); err != nil {
			httpapi.RespondForError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"ok": true})
	}
}

func (w *Worker[In, Out]) execute(ctx context.Context, env domain.Envelope) (Out, error) {
	var zero Out

	exists, err := w.Artifacts.Exists(ctx, env.RunID, w.Stage)
	if err != nil {
		return zero, retry.Retryable("check artifact existence", err)
	}

	var out Out
	if exists {
		out, err = artifactstore.Read[Out](ctx, w.Artifacts, env.RunID, w.Stage)
		if err != nil {
			return zero, retry.Retryable("read cached artifact", err)
		}
	} else {
		in, err := w.LoadInput(ctx, env)
		if err != nil {
			return zero, err
		}
		out, err = w.Business(ctx, env.RunID, in)
		if err != nil {
			return zero, err
		}
		if verr := out.Validate(); verr != nil {
			return zero, retry.Permanent("validate stage output", verr)
		}
		if err := artifactstore.Write(ctx, w.Artifacts, env.RunID, w.Stage, out); err != nil {
			return zero, retry.Retryable("write artifact", err)
		}
	}

	artifacts := map[string]string{
		"cache_key":                        env.RunID,
		fmt.Sprintf("%s_uri", w.Stage):     artifactstore.Path(env.RunID, w.Stage),
	}
	var summary map[string]any
	if w.Summary != nil {
		summary = w.Summary(out)
	}
	completion := domain.Envelope{
		Version:       1,
		EventType:     domain.CompletedEventFor(w.Stage),
		RunID:         env.RunID,
		Step:          w.Stage,
		Input:         env.Input,
		Artifacts:     artifacts,
		Summary:       summary,
		CorrelationID: env.CorrelationID,
		Timestamp:     time.Now(),
	}
	if err := w.Publisher.Publish(ctx, completion); err != nil {
		return zero, err
	}
	return out, nil
}
