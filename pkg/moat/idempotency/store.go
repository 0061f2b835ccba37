// Package idempotency implements the Moat idempotency store (spec §4.2):
// a (tenant_id, idempotency_key) -> Receipt map with TTL eviction.
//
// Adapted from pkg/api/idempotency.go's MemoryIdempotencyStore (mutex +
// map + background sweep goroutine), generalized from a single
// header-keyed cache to the tenant-scoped composite key the spec requires,
// using the literal "{tenant}:{key}" format from the original Python
// idempotency_store.py.
package idempotency

import (
	"sync"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// DefaultTTL is the default entry lifetime (spec §4.2: 86,400 seconds).
const DefaultTTL = 24 * time.Hour

// sweepInterval is the cleanup goroutine cadence, carried from
// pkg/api/idempotency.go's 5-minute ticker.
const sweepInterval = 5 * time.Minute

// Store is the idempotency store contract: Get, Set, optional Clear.
// Satisfied by the in-memory implementation below and, in production, by a
// Redis-backed implementation sharing the same contract (SPEC_FULL.md §B).
type Store interface {
	Get(tenantID, key string) (*contracts.Receipt, bool)
	Set(tenantID, key string, receipt *contracts.Receipt, ttl time.Duration)
	Clear()
}

type entry struct {
	receipt  *contracts.Receipt
	expireAt time.Time
}

// MemoryStore is a process-local, concurrency-safe idempotency store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore constructs a MemoryStore and starts its background
// cleanup sweep. Call Close to stop the sweep goroutine.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func makeKey(tenantID, key string) string {
	return tenantID + ":" + key
}

// Get returns the cached receipt for (tenantID, key), or (nil, false) if
// absent or expired. An expired read evicts the entry (spec §4.2
// invariant: no entry with now >= expiry_at is ever returned).
func (s *MemoryStore) Get(tenantID, key string) (*contracts.Receipt, bool) {
	compositeKey := makeKey(tenantID, key)

	s.mu.RLock()
	e, ok := s.entries[compositeKey]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expireAt) {
		s.mu.Lock()
		delete(s.entries, compositeKey)
		s.mu.Unlock()
		return nil, false
	}
	return e.receipt, true
}

// Set upserts the receipt for (tenantID, key) with the given TTL. Set is
// idempotent: repeated writes of the same triple converge on the same
// observable state.
func (s *MemoryStore) Set(tenantID, key string, receipt *contracts.Receipt, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.entries[makeKey(tenantID, key)] = entry{receipt: receipt, expireAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Clear removes all entries. Mainly useful in tests.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Close stops the background sweep goroutine.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if now.After(e.expireAt) {
			delete(s.entries, k)
		}
	}
}

// Len reports the current entry count, used by tests and health checks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
