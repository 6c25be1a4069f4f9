// Package observability wires OpenTelemetry tracing the way the teacher's
// internal/observability/otel.go does: once per process, OTLP-over-HTTP if
// an endpoint is configured, otherwise a sampler-only provider that drops
// spans rather than blocking on an exporter that was never configured.
package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/logger"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
}

var (
	once     sync.Once
	shutdown func(context.Context) error
)

// Init sets the global tracer provider once per process; subsequent calls
// are no-ops, matching the teacher's sync.Once guard.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	once.Do(func() {
		if !enabled(log) {
			shutdown = func(context.Context) error { return nil }
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "scribeflow"
		}

		res, err := resource.New(ctx, resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", cfg.Version),
			attribute.String("deployment.environment", cfg.Environment),
		))
		if err != nil {
			log.Warn("otel resource init failed, continuing without attributes", "error", err)
		}

		var tp *sdktrace.TracerProvider
		if endpoint := config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", log); endpoint != "" {
			opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
			if config.GetEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false, log) {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
			exporter, expErr := otlptracehttp.New(ctx, opts...)
			if expErr != nil {
				log.Warn("otel exporter init failed, continuing unsampled", "error", expErr)
				tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
			} else {
				tp = sdktrace.NewTracerProvider(
					sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
					sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(log)))),
					sdktrace.WithResource(res),
				)
			}
		} else {
			tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		}

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName)
	})
	return shutdown
}

func enabled(log *logger.Logger) bool {
	return config.GetEnvAsBool("OTEL_ENABLED", false, log)
}

func sampleRatio(log *logger.Logger) float64 {
	raw := config.GetEnv("OTEL_SAMPLER_RATIO", "0.1", log)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0.1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
