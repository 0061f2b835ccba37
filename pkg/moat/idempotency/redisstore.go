package idempotency

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

const keyPrefix = "moat:idempotency:"

// RedisStore is the production-alternative idempotency store backend
// (spec §4.2 / SPEC_FULL.md §B: "distributed idempotency store... a
// production alternative to the in-memory map"). TTL is enforced
// server-side by Redis's own expiry rather than a sweep goroutine.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// Get returns the cached receipt for (tenantID, key), or (nil, false) if
// absent, expired, or on a transient Redis error (fail-open to "not
// found" rather than blocking execution on a cache outage).
func (s *RedisStore) Get(tenantID, key string) (*contracts.Receipt, bool) {
	ctx := context.Background()
	raw, err := s.client.Get(ctx, keyPrefix+makeKey(tenantID, key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("idempotency redis get failed", "error", err)
		return nil, false
	}
	var receipt contracts.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		s.logger.Warn("idempotency redis decode failed", "error", err)
		return nil, false
	}
	return &receipt, true
}

// Set upserts the receipt for (tenantID, key), expiring via Redis's own
// TTL mechanism.
func (s *RedisStore) Set(tenantID, key string, receipt *contracts.Receipt, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		s.logger.Warn("idempotency redis encode failed", "error", err)
		return
	}
	ctx := context.Background()
	if err := s.client.Set(ctx, keyPrefix+makeKey(tenantID, key), raw, ttl).Err(); err != nil {
		s.logger.Warn("idempotency redis set failed", "error", err)
	}
}

// Clear is a test/ops convenience: it deletes every key under the
// idempotency namespace via SCAN, never KEYS, to avoid blocking a shared
// Redis instance.
func (s *RedisStore) Clear() {
	ctx := context.Background()
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("idempotency redis clear failed", "error", err)
		}
	}
}
