package transcribe

import (
	"context"
	"fmt"

	"github.com/clinicore/scribeflow/internal/artifactstore"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/taskqueue"
	"github.com/clinicore/scribeflow/internal/workerskeleton"
)

// NewWorker wires the speech client into the generic stage-worker skeleton.
// Transcribe is the one stage whose input is the raw ingested object rather
// than a predecessor artifact.
func NewWorker(client *Client, artifacts *artifactstore.Store, publisher *messaging.Publisher, tasks *taskqueue.Client, log *logger.Logger, taskTargetURL string) *workerskeleton.Worker[Input, domain.TranscriptArtifact] {
	return &workerskeleton.Worker[Input, domain.TranscriptArtifact]{
		Stage:         domain.StageTranscribe,
		Artifacts:     artifacts,
		Publisher:     publisher,
		Tasks:         tasks,
		Log:           log,
		TaskTargetURL: taskTargetURL,
		LoadInput:     loadInput,
		Business:      client.Transcribe,
		Summary:       summarize,
	}
}

func loadInput(_ context.Context, env domain.Envelope) (Input, error) {
	ref := env.Input
	if err := ref.Validate(); err != nil {
		return Input{}, retry.Permanent("load transcribe input", err)
	}
	return Input{
		GCSURI: fmt.Sprintf("gs://%s/%s", ref.Bucket, ref.Name),
	}, nil
}

func summarize(out domain.TranscriptArtifact) map[string]any {
	return map[string]any{
		"language":     out.Language,
		"duration_sec": out.Duration,
		"segments":     len(out.Segments),
	}
}
