// Package capcache implements the Moat capability cache (spec §4.3): a
// TTL-bounded local view of capability metadata, fetched lazily from a
// registry client and falling back to a synthetic stub record when the
// registry is unreachable.
//
// Grounded on original_source/services/gateway/app/capability_cache.py
// (5-minute TTL, by-id-then-by-name fallback, synthetic stub) and
// structurally on pkg/registry/registry.go (mutex+map shape).
package capcache

import (
	"context"
	"sync"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// TTL is the cache entry lifetime (spec §4.3: ~5 minutes).
const TTL = 5 * time.Minute

// Registry fetches capability manifests from the upstream control plane.
// GetByID looks up by stable id. List returns all known manifests, used for
// the by-name fallback scan on a 404.
type Registry interface {
	GetByID(ctx context.Context, id string) (*contracts.CapabilityManifest, error)
	List(ctx context.Context) ([]*contracts.CapabilityManifest, error)
}

// ErrNotFound is returned by Registry implementations when the id is
// genuinely absent (distinct from network/unreachable errors, which the
// cache maps to a synthetic stub instead).
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return "capcache: capability not found: " + e.ID }

type cacheEntry struct {
	manifest  *contracts.CapabilityManifest
	fetchedAt time.Time
}

// Cache is an in-process TTL cache for capability metadata with a registry
// fallback.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	registry Registry

	// DisableStub forces a hard miss instead of returning a synthetic
	// record when the registry is unreachable (spec §9 Open Question 4;
	// tests must be able to disable the stub).
	DisableStub bool
}

// New constructs a Cache backed by the given Registry client.
func New(registry Registry) *Cache {
	return &Cache{
		entries:  make(map[string]cacheEntry),
		registry: registry,
	}
}

func (c *Cache) isExpired(id string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return cacheEntry{}, true
	}
	return e, time.Since(e.fetchedAt) > TTL
}

func (c *Cache) store(id string, m *contracts.CapabilityManifest) {
	c.mu.Lock()
	c.entries[id] = cacheEntry{manifest: m, fetchedAt: time.Now()}
	c.mu.Unlock()
}

// Invalidate erases a single cached entry.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Get returns the capability metadata for id, using the cache when fresh,
// fetching by id on miss/expiry, falling back to a by-name scan on 404, and
// finally to a synthetic stub record if the registry is unreachable.
func (c *Cache) Get(ctx context.Context, id string) (*contracts.CapabilityManifest, error) {
	if e, expired := c.isExpired(id); !expired {
		return e.manifest, nil
	}

	m, err := c.registry.GetByID(ctx, id)
	if err == nil {
		c.store(id, m)
		return m, nil
	}

	var notFound *ErrNotFound
	if isNotFound(err, &notFound) {
		list, listErr := c.registry.List(ctx)
		if listErr == nil {
			for _, cand := range list {
				if cand.Name == id {
					c.store(id, cand)
					return cand, nil
				}
			}
		}
		return nil, &ErrNotFound{ID: id}
	}

	// Registry unreachable: fall back to a synthetic stub so the gateway
	// pipeline can still run, unless the caller has disabled that escape
	// hatch (tests, or deployments that prefer a hard failure).
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
	c.store(id, stub)
	return stub, nil
}

func isNotFound(err error, target **ErrNotFound) bool {
	nf, ok := err.(*ErrNotFound)
	if ok {
		*target = nf
	}
	return ok
}
