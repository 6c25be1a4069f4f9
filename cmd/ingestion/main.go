// Command ingestion runs the ingestion gateway: the Pub/Sub push endpoint
// that receives GCS object-finalized notifications and turns each one into
// an idempotent orchestrator run, per spec.md §4.1.
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
	"github.com/clinicore/scribeflow/internal/ingestion"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/observability"
	"github.com/clinicore/scribeflow/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ingestion: fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := logger.New(config.GetEnv("LOG_MODE", "production", nil))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	orchestratorURL, err := config.RequireEnv("ORCHESTRATOR_URL", log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdownTracing := observability.Init(ctx, log, observability.Config{
		ServiceName: "ingestion-gateway",
		Environment: config.GetEnv("ENVIRONMENT", "production", log),
	})
	defer func() { _ = shutdownTracing(ctx) }()

	st, err := store.NewPostgres(log)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	cache, err := ingestion.NewDedupeCache(log)
	if err != nil {
		log.Warn("dedupe cache disabled, falling through to transactional upsert only", "error", err)
		cache = nil
	}

	tokens := idtoken.NewCache(idtoken.FetchFromMetadataServer(nil))
	orchClient := ingestion.NewOrchestratorClient(orchestratorURL, tokens, log)

	concurrency := int64(config.GetEnvAsInt("ORCH_CONCURRENCY", 64, log))
	idemTTL := config.GetEnvAsDuration("IDEMPOTENCY_TTL", domain.DefaultIdempotencyTTL, log)

	gateway := ingestion.NewGateway(log, st, cache, orchClient, concurrency, idemTTL)

	engine := httpapi.NewBaseEngine("ingestion-gateway")
	requirePushAuth := config.GetEnvAsBool("REQUIRE_PUSH_AUTH", true, log)
	verifier := idtoken.NewVerifier(
		config.GetEnv("PUBSUB_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs", log),
		config.GetEnv("PUBSUB_AUTH_AUDIENCE", "", log),
	)
	engine.POST("/pubsub/push", middleware.RequirePushAuth(requirePushAuth, verifier, log), gateway.PushHandler())

	addr := ":" + config.GetEnv("PORT", "8080", log)
	log.Info("ingestion gateway listening", "addr", addr)
	server := httpapi.NewServer(engine)
	if err := server.Run(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
