package capcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

const redisKeyPrefix = "moat:capcache:"

// RedisCache is the distributed alternative to Cache's process-local map
// (SPEC_FULL.md §B: "distributed idempotency store and capability-cache
// backend"), for gateway fleets that want a shared cache instead of each
// instance cold-starting its own. Fetch/fallback semantics (by-id, by-name
// scan, stub-on-unreachable) are identical to Cache; only the entry
// storage moves to Redis with server-side TTL expiry.
type RedisCache struct {
	client      *redis.Client
	registry    Registry
	logger      *slog.Logger
	DisableStub bool
}

// NewRedisCache constructs a RedisCache backed by client and registry.
func NewRedisCache(client *redis.Client, registry Registry, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, registry: registry, logger: logger}
}

func (c *RedisCache) load(ctx context.Context, id string) (*contracts.CapabilityManifest, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	var m contracts.CapabilityManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		c.logger.Warn("capcache redis decode failed", "error", err)
		return nil, false
	}
	return &m, true
}

func (c *RedisCache) store(ctx context.Context, id string, m *contracts.CapabilityManifest) {
	raw, err := json.Marshal(m)
	if err != nil {
		c.logger.Warn("capcache redis encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+id, raw, TTL).Err(); err != nil {
		c.logger.Warn("capcache redis set failed", "error", err)
	}
}

// Invalidate erases a single cached entry.
func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("capcache redis invalidate failed", "error", err)
	}
}

// Get mirrors Cache.Get's fetch/fallback/stub semantics over a Redis-backed
// entry store instead of a process-local map.
func (c *RedisCache) Get(ctx context.Context, id string) (*contracts.CapabilityManifest, error) {
	if m, ok := c.load(ctx, id); ok {
		return m, nil
	}

	m, err := c.registry.GetByID(ctx, id)
	if err == nil {
		c.store(ctx, id, m)
		return m, nil
	}

	var notFound *ErrNotFound
	if isNotFound(err, &notFound) {
		list, listErr := c.registry.List(ctx)
		if listErr == nil {
			for _, cand := range list {
				if cand.Name == id {
					c.store(ctx, id, cand)
					return cand, nil
				}
			}
		}
		return nil, &ErrNotFound{ID: id}
	}

	if c.DisableStub {
		return nil, err
	}
	stub := &contracts.CapabilityManifest{
		ID:          id,
		Name:        "stub:" + id,
		Version:     "0.0.0",
		Provider:    "stub",
		Method:      "POST /stub",
		Description: "stub capability (registry unreachable)",
		RiskClass:   contracts.RiskLow,
		Status:      contracts.StatusActive,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
		Stub:        true,
	}
	c.store(ctx, id, stub)
	return stub, nil
}
