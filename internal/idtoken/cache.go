// Package idtoken provides both halves of OIDC identity-token handling:
// a mint-side cache (ingestion calling the orchestrator) and a verify-side
// JWKS-cached validator (any push endpoint authenticating an inbound call).
// Grounded on original_source's ingest_worker/main.py (_ID_TOKEN_CACHE,
// _fetch_identity_token, _verify_pubsub_auth).
package idtoken

import (
	"sync"
	"time"
)

// cacheTTL is the conservative 5-minute TTL spec.md §5 calls for — well
// under a real identity token's ~1 hour expiry, so a concurrent refresh
// racing an in-flight one is always safe to overwrite.
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	token string
	exp   time.Time
}

// Cache is a per-audience identity-token cache. The zero value is not usable;
// construct with NewCache. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	fetch   func(audience string) (string, error)
}

// NewCache wraps fetch (the actual token-minting call, e.g. against the
// metadata server or a service-account signer) with a TTL cache.
func NewCache(fetch func(audience string) (string, error)) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), fetch: fetch}
}

func (c *Cache) Get(audience string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[audience]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.exp) {
		return entry.token, nil
	}

	token, err := c.fetch(audience)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[audience] = cacheEntry{token: token, exp: time.Now().Add(cacheTTL)}
	c.mu.Unlock()
	return token, nil
}
