// Package adapter implements the Moat adapter registry and its adapters
// (spec §4.5): a name->adapter lookup with a stub fallback, and the
// HTTPS-proxy adapter with SSRF defense.
//
// Registry grounded on pkg/registry/registry.go's mutex+map shape; the
// canary-rollout bucketing in that file does not apply to spec's plain
// one-to-one provider->adapter contract and is dropped (see DESIGN.md).
package adapter

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome object returned by Adapter.Execute.
type Result struct {
	StatusCode int                    `json:"status_code,omitempty"`
	Headers    map[string]string      `json:"headers,omitempty"`
	Body       interface{}            `json:"body,omitempty"`
	ContentType string                `json:"content_type,omitempty"`

	// ProviderRequestID correlates this result with the upstream provider's
	// own request id, when available.
	ProviderRequestID string `json:"provider_request_id,omitempty"`
}

// AsMap renders the Result as a plain map for hashing/receipt purposes.
func (r *Result) AsMap() map[string]interface{} {
	if r == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"status_code":  r.StatusCode,
		"headers":      r.Headers,
		"body":         r.Body,
		"content_type": r.ContentType,
	}
}

// Error is an adapter-classified failure: provider name, status code, and
// the upstream's own request id, kept distinguishable from internal
// programming errors (spec §4.5: "failures must be distinguishable").
type Error struct {
	Provider          string
	StatusCode        int
	ProviderRequestID string
	Err               error
}

func (e *Error) Error() string {
	return "adapter(" + e.Provider + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Adapter implements execution of one provider's API. Execute must never
// log the credential.
type Adapter interface {
	ProviderName() string
	Execute(ctx context.Context, capabilityID, capabilityName string, params map[string]interface{}, credential string) (*Result, error)
}

// Registry is a provider-name -> Adapter one-to-one mapping.
// Re-registration silently replaces the previous entry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	stub     Adapter
}

// NewRegistry constructs a Registry with the given stub fallback adapter.
func NewRegistry(stub Adapter) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		stub:     stub,
	}
}

// Register adds or replaces the adapter for its ProviderName().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ProviderName()] = a
}

// Get returns the adapter registered for provider, or (nil, false).
func (r *Registry) Get(provider string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[provider]
	return a, ok
}

// GetOrStub returns the registered adapter for provider, or the stub
// adapter if none is registered.
func (r *Registry) GetOrStub(provider string) Adapter {
	if a, ok := r.Get(provider); ok {
		return a
	}
	return r.stub
}

// StubLatency is the small synthetic latency the stub adapter sleeps for,
// simulating a real network round trip in development (spec §4.5).
const StubLatency = 10 * time.Millisecond
