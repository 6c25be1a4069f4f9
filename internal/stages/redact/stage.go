package redact

import (
	"context"

	"github.com/clinicore/scribeflow/internal/artifactstore"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/taskqueue"
	"github.com/clinicore/scribeflow/internal/workerskeleton"
)

const DefaultPolicy = "safe_harbor_v1"

// Handler holds the salt used for deterministic masking; it's the
// redact-stage analogue of transcribe.Client — a process-wide, read-only
// configuration handle rather than a network client.
type Handler struct {
	salt string
}

func NewHandler(log *logger.Logger) *Handler {
	return &Handler{salt: Salt(log)}
}

func NewWorker(h *Handler, artifacts *artifactstore.Store, publisher *messaging.Publisher, tasks *taskqueue.Client, log *logger.Logger, taskTargetURL string) *workerskeleton.Worker[domain.TranscriptArtifact, domain.RedactedArtifact] {
	loadInput := func(ctx context.Context, env domain.Envelope) (domain.TranscriptArtifact, error) {
		art, err := artifactstore.Read[domain.TranscriptArtifact](ctx, artifacts, env.RunID, domain.StageTranscribe)
		if err == artifactstore.ErrNotFound {
			return domain.TranscriptArtifact{}, retry.Permanent("load transcript for redaction", err)
		}
		if err != nil {
			return domain.TranscriptArtifact{}, retry.Retryable("load transcript for redaction", err)
		}
		return art, nil
	}

	return &workerskeleton.Worker[domain.TranscriptArtifact, domain.RedactedArtifact]{
		Stage:         domain.StageRedact,
		Artifacts:     artifacts,
		Publisher:     publisher,
		Tasks:         tasks,
		Log:           log,
		TaskTargetURL: taskTargetURL,
		LoadInput:     loadInput,
		Business:      h.Redact,
		Summary:       summarize,
	}
}

func (h *Handler) Redact(_ context.Context, _ string, in domain.TranscriptArtifact) (domain.RedactedArtifact, error) {
	if in.Text == "" {
		return domain.RedactedArtifact{}, retry.Permanent("redact", errEmptyTranscript)
	}
	entities := Detect(in.Text)
	maskedText := ApplyDeterministicMask(in.Text, entities, h.salt)
	counts := EntityCounts(entities)

	return domain.RedactedArtifact{
		Text: maskedText,
		Summary: domain.RedactionSummary{
			Entities: counts,
			Total:    len(entities),
			Policy:   DefaultPolicy,
		},
	}, nil
}

func summarize(out domain.RedactedArtifact) map[string]any {
	return map[string]any{
		"entity_total": out.Summary.Total,
		"policy":       out.Summary.Policy,
	}
}
