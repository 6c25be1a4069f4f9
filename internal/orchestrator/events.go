package orchestrator

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/httpapi"
	"github.com/clinicore/scribeflow/internal/httpapi/response"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/store"
)

// Events is the `/events/pubsub` handler: decodes a stage-completed or
// stage-failed envelope and drives the state machine spec.md §4.2 defines.
// Unrecognized event types ack-and-ignore, matching the stage worker push
// receiver's own convention.
func (ctl *Controller) Events() gin.HandlerFunc {
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

		ctx := c.Request.Context()

		switch {
		case env.EventType.IsCompleted():
			if err := ctl.handleCompleted(ctx, env); err != nil {
				httpapi.RespondForError(c, err)
				return
			}
		case env.EventType.IsFailed():
			stage := env.EventType.Stage()
			if stage == "" {
				ctl.log.Debug("ignoring failed event with unrecognized stage", "event_type", string(env.EventType))
				c.Status(http.StatusOK)
				return
			}
			errMsg := env.Error
			if errMsg == "" {
				errMsg = "stage reported failure with no error detail"
			}
			if err := ctl.store.FailStageAndFinalize(ctx, env.RunID, stage, errMsg); err != nil {
				httpapi.RespondForError(c, err)
				return
			}
			ctl.log.Info("run failed", "run_id", env.RunID, "stage", string(stage), "error", errMsg)
		default:
			ctl.log.Debug("ignoring unrecognized event type", "event_type", string(env.EventType))
		}

		c.Status(http.StatusOK)
	}
}

// handleCompleted marks env's stage COMPLETED and decides the next action
// per spec.md §4.2's table. The decide closure is evaluated inside the same
// transaction that marks the stage complete, so the audit hipaa_pass branch
// and every other transition is computed exactly once per genuine
// completion; a redelivered completion finds the stage already COMPLETED
// and the transaction returns AlreadyCompleted without re-deciding.
func (ctl *Controller) handleCompleted(ctx context.Context, env domain.Envelope) error {
	stage := env.EventType.Stage()
	if stage == "" {
		return nil
	}

	result, err := ctl.store.CompleteStageAndAdvance(ctx, env.RunID, stage, env.Artifacts, func(rec *domain.StageRecord) store.AdvanceResult {
		return decideNext(stage, env)
	})
	if err != nil {
		return err
	}
	if result.AlreadyCompleted {
		ctl.log.Debug("stage already completed, skipping re-decision", "run_id", env.RunID, "stage", string(stage))
		return nil
	}

	if result.NextStage != "" {
		next := domain.Envelope{
			Version:       1,
			EventType:     domain.RequestedEventFor(result.NextStage),
			RunID:         env.RunID,
			Step:          result.NextStage,
			Input:         env.Input,
			CorrelationID: env.CorrelationID,
			Timestamp:     time.Now(),
		}
		if err := ctl.publisher.Publish(ctx, next); err != nil {
			ctl.log.Error("publish next stage requested failed", "run_id", env.RunID, "next_stage", string(result.NextStage), "error", err)
			return err
		}
	}
	if result.ShouldFinalize {
		ctl.log.Info("run finalized", "run_id", env.RunID, "status", string(result.FinalStatus), "outcome", string(result.FinalOutcome))
	}
	return nil
}

// decideNext implements spec.md §4.2's state table. audit.completed is the
// only branch point: the decision depends solely on the audit artifact's
// hipaa_pass summary field, never on any other envelope content.
func decideNext(stage domain.Stage, env domain.Envelope) store.AdvanceResult {
	switch stage {
	case domain.StageTranscribe:
		return store.AdvanceResult{NextStage: domain.StageRedact}
	case domain.StageRedact:
		return store.AdvanceResult{NextStage: domain.StageAudit}
	case domain.StageAudit:
		if hipaaPass(env) {
			return store.AdvanceResult{NextStage: domain.StageSOAP}
		}
		return store.AdvanceResult{ShouldFinalize: true, FinalStatus: domain.RunCompleted, FinalOutcome: domain.OutcomeFail}
	case domain.StageSOAP:
		return store.AdvanceResult{ShouldFinalize: true, FinalStatus: domain.RunCompleted, FinalOutcome: domain.OutcomePass}
	default:
		return store.AdvanceResult{}
	}
}

func hipaaPass(env domain.Envelope) bool {
	if env.Summary == nil {
		return false
	}
	v, ok := env.Summary["hipaa_pass"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
