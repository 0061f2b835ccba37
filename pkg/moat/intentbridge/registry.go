package intentbridge

import (
	"context"
	"strings"
	"sync"
)

// MemoryAgentRegistry is an in-process AgentRegistry backed by a plain map,
// used by development deployments and tests in place of the upstream agent
// registry client (spec §4.8 resolution step 2).
type MemoryAgentRegistry struct {
	mu      sync.RWMutex
	tenants map[string]string // lowercased address -> tenant_id
}

// NewMemoryAgentRegistry constructs an empty MemoryAgentRegistry.
func NewMemoryAgentRegistry() *MemoryAgentRegistry {
	return &MemoryAgentRegistry{tenants: make(map[string]string)}
}

// Register records the owning tenant for an on-chain agent address.
func (r *MemoryAgentRegistry) Register(address, tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[strings.ToLower(address)] = tenantID
}

// TenantForAddress implements AgentRegistry.
func (r *MemoryAgentRegistry) TenantForAddress(_ context.Context, address string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenantID, ok := r.tenants[strings.ToLower(address)]
	return tenantID, ok
}
