// Package soap generates the final clinical note from the redacted
// transcript, gated on the audit stage having passed. Grounded on
// original_source/services/soap_service's generation flow, reusing the same
// llmclient.Client shape as the audit stage.
package soap

import (
	"context"
	"strings"

	"github.com/clinicore/scribeflow/internal/artifactstore"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/llmclient"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/taskqueue"
	"github.com/clinicore/scribeflow/internal/workerskeleton"
)

type Handler struct {
	llm *llmclient.Client
	log *logger.Logger
}

func NewHandler(llm *llmclient.Client, log *logger.Logger) *Handler {
	return &Handler{llm: llm, log: log.With("component", "soap")}
}

func NewWorker(h *Handler, artifacts *artifactstore.Store, publisher *messaging.Publisher, tasks *taskqueue.Client, log *logger.Logger, taskTargetURL string) *workerskeleton.Worker[domain.RedactedArtifact, domain.SOAPArtifact] {
	loadInput := func(ctx context.Context, env domain.Envelope) (domain.RedactedArtifact, error) {
		art, err := artifactstore.Read[domain.RedactedArtifact](ctx, artifacts, env.RunID, domain.StageRedact)
		if err == artifactstore.ErrNotFound {
			return domain.RedactedArtifact{}, retry.Permanent("load redacted text for soap", err)
		}
		if err != nil {
			return domain.RedactedArtifact{}, retry.Retryable("load redacted text for soap", err)
		}
		return art, nil
	}

	return &workerskeleton.Worker[domain.RedactedArtifact, domain.SOAPArtifact]{
		Stage:         domain.StageSOAP,
		Artifacts:     artifacts,
		Publisher:     publisher,
		Tasks:         tasks,
		Log:           log,
		TaskTargetURL: taskTargetURL,
		LoadInput:     loadInput,
		Business:      h.GenerateNote,
		Summary:       summarize,
	}
}

func (h *Handler) GenerateNote(ctx context.Context, runID string, in domain.RedactedArtifact) (domain.SOAPArtifact, error) {
	if strings.TrimSpace(in.Text) == "" {
		return domain.SOAPArtifact{}, retry.Permanent("soap", errEmptyRedactedText)
	}

	content, err := h.llm.Complete(ctx, systemPrompt, in.Text)
	if err != nil {
		return domain.SOAPArtifact{}, llmclient.ClassifyError("soap llm call", err)
	}

	note := strings.TrimSpace(content)
	return domain.SOAPArtifact{SOAPNote: note}, nil
}

func summarize(out domain.SOAPArtifact) map[string]any {
	return map[string]any{
		"note_len": len(out.SOAPNote),
	}
}
