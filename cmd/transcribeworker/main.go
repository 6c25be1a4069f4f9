// Command transcribeworker runs the transcribe stage: the first instantiation
// of the stage-worker skeleton, calling Google Speech-to-Text over the
// uploaded audio object and publishing transcribe.completed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/clinicore/scribeflow/internal/artifactstore"
	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/httpapi"
	"github.com/clinicore/scribeflow/internal/httpapi/middleware"
	"github.com/clinicore/scribeflow/internal/idtoken"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/observability"
	"github.com/clinicore/scribeflow/internal/stages/transcribe"
	"github.com/clinicore/scribeflow/internal/taskqueue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "transcribeworker: fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := logger.New(config.GetEnv("LOG_MODE", "production", nil))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	bucket, err := config.RequireEnv("ARTIFACTS_BUCKET", log)
	if err != nil {
		return err
	}
	projectID, err := config.RequireEnv("GCP_PROJECT_ID", log)
	if err != nil {
		return err
	}
	taskTargetURL, err := config.RequireEnv("TASK_TARGET_URL", log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdownTracing := observability.Init(ctx, log, observability.Config{
		ServiceName: "transcribe-worker",
		Environment: config.GetEnv("ENVIRONMENT", "production", log),
	})
	defer func() { _ = shutdownTracing(ctx) }()

	artifacts, err := artifactstore.New(ctx, bucket, log)
	if err != nil {
		return fmt.Errorf("new artifact store: %w", err)
	}

	publisher, err := messaging.NewPublisher(ctx, projectID, messaging.TopicConfig{
		domain.EventTranscribeCompleted: config.GetEnv("TOPIC_TRANSCRIBE_COMPLETED", "transcribe-completed", log),
	}, log)
	if err != nil {
		return fmt.Errorf("new publisher: %w", err)
	}
	defer publisher.Close()

	tasks, err := taskqueue.New(ctx, taskqueue.Config{
		ProjectID: projectID,
		Location:  config.GetEnv("TASKS_LOCATION", "us-central1", log),
		QueueName: config.GetEnv("TASKS_QUEUE_TRANSCRIBE", "transcribe", log),
		CallerSA:  config.GetEnv("TASKS_CALLER_SA", "", log),
		Audience:  taskTargetURL,
	}, log)
	if err != nil {
		return fmt.Errorf("new task queue client: %w", err)
	}

	speechClient, err := transcribe.New(ctx, log)
	if err != nil {
		return fmt.Errorf("new speech client: %w", err)
	}

	worker := transcribe.NewWorker(speechClient, artifacts, publisher, tasks, log, taskTargetURL)

	engine := httpapi.NewBaseEngine("transcribe-worker")
	requirePushAuth := config.GetEnvAsBool("REQUIRE_PUSH_AUTH", true, log)
	verifier := idtoken.NewVerifier(
		config.GetEnv("PUBSUB_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs", log),
		config.GetEnv("PUBSUB_AUTH_AUDIENCE", "", log),
	)
	engine.POST("/events/pubsub", middleware.RequirePushAuth(requirePushAuth, verifier, log), worker.PushReceiver())
	engine.POST("/tasks/transcribe", middleware.RequirePushAuth(requirePushAuth, verifier, log), worker.TaskExecutor())

	addr := ":" + config.GetEnv("PORT", "8080", log)
	log.Info("transcribe worker listening", "addr", addr)
	server := httpapi.NewServer(engine)
	if err := server.Run(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
