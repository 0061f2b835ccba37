package adapter

import (
	"context"
	"time"
)

// StubAdapter responds success after a small synthetic latency and echoes
// its inputs. It is the fallback used by Registry.GetOrStub when no real
// adapter is registered for a provider, keeping the gateway live in
// development (spec §4.5).
type StubAdapter struct{}

// NewStubAdapter constructs a StubAdapter.
func NewStubAdapter() *StubAdapter { return &StubAdapter{} }

func (s *StubAdapter) ProviderName() string { return "stub" }

func (s *StubAdapter) Execute(ctx context.Context, capabilityID, capabilityName string, params map[string]interface{}, credential string) (*Result, error) {
	select {
	case <-time.After(StubLatency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Result{
		StatusCode:  200,
		ContentType: "application/json",
		Body: map[string]interface{}{
			"echo":            params,
			"capability_id":   capabilityID,
			"capability_name": capabilityName,
			"stub":            true,
		},
	}, nil
}
