package capcache

import (
	"context"
	"sync"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// MemoryRegistry is an in-process Registry backed by a plain map, used by
// development deployments and tests in place of the control-plane registry
// client.
type MemoryRegistry struct {
	mu         sync.RWMutex
	manifests  map[string]*contracts.CapabilityManifest
	unreachable bool
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{manifests: make(map[string]*contracts.CapabilityManifest)}
}

// Put registers a manifest under its ID.
func (r *MemoryRegistry) Put(m *contracts.CapabilityManifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifests[m.ID] = m
}

// SetUnreachable simulates a control-plane outage for cache-fallback tests.
func (r *MemoryRegistry) SetUnreachable(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable = v
}

// GetByID implements Registry.
func (r *MemoryRegistry) GetByID(_ context.Context, id string) (*contracts.CapabilityManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.unreachable {
		return nil, errUnreachable{}
	}
	m, ok := r.manifests[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	return m, nil
}

// List implements Registry.
func (r *MemoryRegistry) List(_ context.Context) ([]*contracts.CapabilityManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.unreachable {
		return nil, errUnreachable{}
	}
	out := make([]*contracts.CapabilityManifest, 0, len(r.manifests))
	for _, m := range r.manifests {
		out = append(out, m)
	}
	return out, nil
}

type errUnreachable struct{}

func (errUnreachable) Error() string { return "capcache: registry unreachable" }
