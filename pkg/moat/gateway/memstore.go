package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// MemoryBundleStore is an in-process BundleStore keyed by "tenant:capability",
// used by development deployments and tests. Production deployments back
// BundleStore with the control-plane database (SPEC_FULL.md §B).
type MemoryBundleStore struct {
	mu      sync.RWMutex
	bundles map[string]*contracts.PolicyBundle
}

// NewMemoryBundleStore constructs an empty MemoryBundleStore.
func NewMemoryBundleStore() *MemoryBundleStore {
	return &MemoryBundleStore{bundles: make(map[string]*contracts.PolicyBundle)}
}

func bundleKey(tenantID, capabilityID string) string { return tenantID + ":" + capabilityID }

// Put registers bundle for (tenantID, capabilityID).
func (s *MemoryBundleStore) Put(tenantID, capabilityID string, bundle *contracts.PolicyBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[bundleKey(tenantID, capabilityID)] = bundle
}

// Get implements BundleStore.
func (s *MemoryBundleStore) Get(_ context.Context, tenantID, capabilityID string) (*contracts.PolicyBundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[bundleKey(tenantID, capabilityID)]
	return b, ok
}

// dailySpend tracks cents spent for a (tenant, capability) on a given
// calendar day.
type dailySpend struct {
	day   string
	cents int64
}

// MemorySpendTracker is an in-process SpendTracker, resetting at UTC
// midnight per tenant+capability. Production deployments back SpendTracker
// with a transactional ledger (SPEC_FULL.md §B).
type MemorySpendTracker struct {
	mu     sync.Mutex
	spends map[string]dailySpend
}

// NewMemorySpendTracker constructs an empty MemorySpendTracker.
func NewMemorySpendTracker() *MemorySpendTracker {
	return &MemorySpendTracker{spends: make(map[string]dailySpend)}
}

func today() string { return time.Now().UTC().Format("2006-01-02") }

// CurrentDailySpend implements SpendTracker.
func (t *MemorySpendTracker) CurrentDailySpend(_ context.Context, tenantID, capabilityID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := bundleKey(tenantID, capabilityID)
	s, ok := t.spends[key]
	if !ok || s.day != today() {
		return 0, nil
	}
	return s.cents, nil
}

// RecordSpend implements SpendTracker.
func (t *MemorySpendTracker) RecordSpend(_ context.Context, tenantID, capabilityID string, cents int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := bundleKey(tenantID, capabilityID)
	s := t.spends[key]
	day := today()
	if s.day != day {
		s = dailySpend{day: day}
	}
	s.cents += cents
	t.spends[key] = s
	return nil
}
