// Package messaging wraps Pub/Sub publish-with-ordering-key plus the push
// envelope decode/verify half of every internal HTTP boundary, grounded on
// original_source's orchestrator_service (publish_event, idempotency key,
// RETRYABLE_PUBSUB_EXC) and transcribe_service's _publish_completed/
// _decode_pubsub_envelope.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/gcpauth"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/retry"
)

type Publisher struct {
	log    *logger.Logger
	client *pubsub.Client
	topics map[domain.EventType]*pubsub.Topic
	policy retry.Policy
}

// TopicConfig maps each requested/completed event type to the Pub/Sub topic
// id it publishes on (distinct topics per stage, matching the original's
// TOPICS dict keyed by stage name).
type TopicConfig map[domain.EventType]string

func NewPublisher(ctx context.Context, projectID string, topics TopicConfig, log *logger.Logger) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, gcpauth.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("messaging: new pubsub client: %w", err)
	}
	orderingEnabled := config.GetEnvAsBool("PUBSUB_ORDERING_ENABLED", true, log)
	resolved := make(map[domain.EventType]*pubsub.Topic, len(topics))
	for eventType, topicID := range topics {
		t := client.Topic(topicID)
		t.EnableMessageOrdering = orderingEnabled
		resolved[eventType] = t
	}
	return &Publisher{
		log:    log.With("component", "messaging"),
		client: client,
		topics: resolved,
		policy: retry.PolicyFromEnv(log),
	}, nil
}

// Publish sends env with ordering key = env.RunID, retrying transient
// publish failures in-process with full-jitter exponential backoff up to the
// configured budget. A RetryableError is returned (for the caller to surface
// as 503) if the budget is exhausted; a missing topic or an envelope that
// cannot be marshaled is a PermanentError; a cancelled or expired ctx returns
// the context's own error.
func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) error {
	topic, ok := p.topics[env.EventType]
	if !ok {
		return retry.Permanent("publish", fmt.Errorf("no topic configured for event_type %q", env.EventType))
	}
	body, err := json.Marshal(env)
	if err != nil {
		return retry.Permanent("publish", fmt.Errorf("marshal envelope: %w", err))
	}

	p.log.Debug("publishing event", "event_type", string(env.EventType), "run_id", env.RunID, "size", len(body))

	return retry.Do(ctx, p.policy, func(ctx context.Context) error {
		result := topic.Publish(ctx, &pubsub.Message{
			Data:        body,
			OrderingKey: env.RunID,
			Attributes:  map[string]string{"event_type": string(env.EventType)},
		})
		_, err := result.Get(ctx)
		if err == nil {
			return nil
		}
		return retry.Retryable("publish", err)
	})
}

func (p *Publisher) Close() error {
	for _, t := range p.topics {
		t.Stop()
	}
	return p.client.Close()
}
