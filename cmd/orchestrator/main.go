// Command orchestrator runs the stateful pipeline controller: create-run and
// the stage-completion event handler that drives the transcribe→redact→
// audit→soap DAG forward, per spec.md §4.2.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/httpapi"
	"github.com/clinicore/scribeflow/internal/httpapi/middleware"
	"github.com/clinicore/scribeflow/internal/idtoken"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/observability"
	"github.com/clinicore/scribeflow/internal/orchestrator"
	"github.com/clinicore/scribeflow/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator: fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := logger.New(config.GetEnv("LOG_MODE", "production", nil))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	projectID, err := config.RequireEnv("GCP_PROJECT_ID", log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdownTracing := observability.Init(ctx, log, observability.Config{
		ServiceName: "orchestrator",
		Environment: config.GetEnv("ENVIRONMENT", "production", log),
	})
	defer func() { _ = shutdownTracing(ctx) }()

	st, err := store.NewPostgres(log)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	topics := messaging.TopicConfig{
		domain.EventTranscribeRequested: config.GetEnv("TOPIC_TRANSCRIBE_REQUESTED", "transcribe-requested", log),
		domain.EventRedactRequested:     config.GetEnv("TOPIC_REDACT_REQUESTED", "redact-requested", log),
		domain.EventAuditRequested:      config.GetEnv("TOPIC_AUDIT_REQUESTED", "audit-requested", log),
		domain.EventSOAPRequested:       config.GetEnv("TOPIC_SOAP_REQUESTED", "soap-requested", log),
	}
	publisher, err := messaging.NewPublisher(ctx, projectID, topics, log)
	if err != nil {
		return fmt.Errorf("new publisher: %w", err)
	}
	defer publisher.Close()

	runTTL := config.GetEnvAsDuration("RUN_TTL", domain.DefaultIdempotencyTTL, log)
	ctl := orchestrator.NewController(log, st, publisher, runTTL)

	engine := httpapi.NewBaseEngine("orchestrator")
	requirePushAuth := config.GetEnvAsBool("REQUIRE_PUSH_AUTH", true, log)
	verifier := idtoken.NewVerifier(
		config.GetEnv("PUBSUB_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs", log),
		config.GetEnv("PUBSUB_AUTH_AUDIENCE", "", log),
	)
	engine.POST("/run", middleware.RequirePushAuth(requirePushAuth, verifier, log), ctl.CreateRun())
	engine.POST("/events/pubsub", middleware.RequirePushAuth(requirePushAuth, verifier, log), ctl.Events())

	addr := ":" + config.GetEnv("PORT", "8080", log)
	log.Info("orchestrator listening", "addr", addr)
	server := httpapi.NewServer(engine)
	if err := server.Run(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
