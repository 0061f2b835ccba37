// Package intentbridge implements the inbound intent bridge (spec §4.8):
// resolving an on-chain sender address to a Moat tenant and re-entering
// the execution gateway pipeline under that tenant.
//
// Grounded on spec §4.8's prose and on pkg/executor's interface-seam
// relationship to its callers for breaking the cycle between bridge and
// gateway described in spec §9's design notes: the bridge depends on an
// Executor interface; the gateway implements it.
package intentbridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// InboundIntent is the structured event accepted from the chain indexer.
type InboundIntent struct {
	IntentHash      string
	ChainID         int64
	ContractAddress string
	BlockNumber     uint64
	TxHash          string
	CapabilityID    string
	Params          map[string]interface{}
	TenantID        string // optional; not consulted — the tenant always comes from sender resolution
	Sender          string
}

// ExecuteRequest mirrors the gateway's entry request shape (spec §4.9),
// kept local to avoid an import cycle with pkg/moat/gateway.
type ExecuteRequest struct {
	Params         map[string]interface{}
	TenantID       string
	Scope          string
	IdempotencyKey string
}

// Executor is the subset of the execution gateway the bridge re-enters
// into. Implemented by pkg/moat/gateway.Gateway.
type Executor interface {
	Execute(ctx context.Context, capabilityID string, req ExecuteRequest, callerTenantID string, bypassTenantCheck bool) (*contracts.Receipt, error)
}

// AgentRegistry resolves an on-chain registry address to its owning
// tenant, used as the second resolution step.
type AgentRegistry interface {
	TenantForAddress(ctx context.Context, address string) (string, bool)
}

// ErrSenderNotRegistered is returned when none of the three resolution
// steps find a tenant for the sender (spec §4.8 step 4, S7).
var ErrSenderNotRegistered = fmt.Errorf("sender not registered")

// Bridge resolves senders to tenants and re-enters the gateway pipeline.
type Bridge struct {
	executor Executor
	registry AgentRegistry

	mu          sync.RWMutex
	senderCache map[string]string // lowercased sender -> tenant_id
	fallback    map[string]string // lowercased sender -> tenant_id, from static config
}

// New constructs a Bridge. fallback is the static sender->tenant map from
// configuration (resolution step 3).
func New(executor Executor, registry AgentRegistry, fallback map[string]string) *Bridge {
	normalizedFallback := make(map[string]string, len(fallback))
	for k, v := range fallback {
		normalizedFallback[strings.ToLower(k)] = v
	}
	return &Bridge{
		executor:    executor,
		registry:    registry,
		senderCache: make(map[string]string),
		fallback:    normalizedFallback,
	}
}

// CacheTenant records a known sender->tenant mapping (resolution step 1).
func (b *Bridge) CacheTenant(sender, tenantID string) {
	b.mu.Lock()
	b.senderCache[strings.ToLower(sender)] = tenantID
	b.mu.Unlock()
}

func (b *Bridge) resolveTenant(ctx context.Context, sender string) (string, error) {
	sender = strings.ToLower(sender)

	// Step 1: in-memory cache.
	b.mu.RLock()
	tenantID, ok := b.senderCache[sender]
	b.mu.RUnlock()
	if ok {
		return tenantID, nil
	}

	// Step 2: upstream agent registry.
	if b.registry != nil {
		if tenantID, ok := b.registry.TenantForAddress(ctx, sender); ok {
			b.CacheTenant(sender, tenantID)
			return tenantID, nil
		}
	}

	// Step 3: static fallback map from configuration.
	if tenantID, ok := b.fallback[sender]; ok {
		return tenantID, nil
	}

	// Step 4: unresolved.
	return "", ErrSenderNotRegistered
}

// Accept resolves the intent's sender to a tenant, constructs a synthetic
// execute request with scope=execute, and re-enters the gateway pipeline
// under the resolved tenant — bypassing the usual caller-auth check,
// because the chain indexer is treated as a trusted ingester (spec §4.8).
func (b *Bridge) Accept(ctx context.Context, intent InboundIntent) (*contracts.Receipt, error) {
	tenantID, err := b.resolveTenant(ctx, intent.Sender)
	if err != nil {
		return nil, err
	}

	req := ExecuteRequest{
		Params:   intent.Params,
		TenantID: tenantID,
		Scope:    "execute",
	}

	receipt, err := b.executor.Execute(ctx, intent.CapabilityID, req, tenantID, true)
	if err != nil {
		return nil, err
	}

	receipt.Web3 = &contracts.Web3ExecutionContext{
		ChainID:         intent.ChainID,
		ContractAddress: intent.ContractAddress,
		TxHash:          intent.TxHash,
		BlockNumber:     intent.BlockNumber,
		Direction:       "inbound",
		IntentHash:      intent.IntentHash,
	}
	return receipt, nil
}
