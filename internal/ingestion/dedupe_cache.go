// Package ingestion implements the gateway spec.md §4.1 describes: verify
// push auth, derive an idempotency key from the notification, fast-peek a
// Redis cache before touching Postgres, then hand off to the orchestrator
// under a bounded concurrency limit.
package ingestion

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/logger"
)

// DedupeCache is a Redis-backed fast-peek in front of the Postgres
// ingestion-record table: most redeliveries of an already-seen notification
// should never need a transactional round trip. Grounded on the teacher's
// internal/clients/redis/sse_bus.go construction pattern, repurposed from a
// pub/sub bus into an EXISTS/SET-based dedupe cache.
type DedupeCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewDedupeCache(log *logger.Logger) (*DedupeCache, error) {
	addr := config.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := config.GetEnvAsDuration("INGESTION_DEDUPE_TTL", 24*time.Hour, log)
	return &DedupeCache{log: log.With("component", "dedupe_cache"), rdb: rdb, ttl: ttl}, nil
}

// SeenRecently reports whether idemKey was already claimed, without
// touching Postgres. A false result is not authoritative — the caller must
// still go through store.UpsertIngestion, which is the source of truth.
func (d *DedupeCache) SeenRecently(ctx context.Context, idemKey string) (bool, error) {
	count, err := d.rdb.Exists(ctx, d.key(idemKey)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSeen records that idemKey was handed to the orchestrator successfully,
// so later redeliveries short-circuit without a transactional round trip.
func (d *DedupeCache) MarkSeen(ctx context.Context, idemKey string) error {
	return d.rdb.Set(ctx, d.key(idemKey), "1", d.ttl).Err()
}

func (d *DedupeCache) key(idemKey string) string {
	return "ingestion:seen:" + idemKey
}

func (d *DedupeCache) Close() error {
	return d.rdb.Close()
}
