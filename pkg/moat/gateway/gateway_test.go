package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/adapter"
	"github.com/jeremylongshore/moat/pkg/moat/capcache"
	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/gateway"
	"github.com/jeremylongshore/moat/pkg/moat/idempotency"
	"github.com/jeremylongshore/moat/pkg/moat/policy"
	"github.com/jeremylongshore/moat/pkg/moat/receipthook"
	"github.com/jeremylongshore/moat/pkg/moat/trust"
)

func liveManifest(id string) *contracts.CapabilityManifest {
	now := time.Now().UTC()
	return &contracts.CapabilityManifest{
		ID: id, Name: id, Version: "1.0.0", Provider: "stub",
		Status: contracts.StatusActive, RiskClass: contracts.RiskLow,
		CreatedAt: now, UpdatedAt: now,
	}
}

func newTestGateway(t *testing.T, manifest *contracts.CapabilityManifest, bundle *contracts.PolicyBundle) *gateway.Gateway {
	t.Helper()
	reg := capcache.NewMemoryRegistry()
	reg.Put(manifest)

	bundles := gateway.NewMemoryBundleStore()
	bundles.Put(bundle.TenantID, manifest.ID, bundle)

	hook, err := receipthook.New(receipthook.Config{DryRun: true})
	require.NoError(t, err)

	gw := gateway.New(gateway.Gateway{
		Capabilities: capcache.New(reg),
		Policy:       &policy.Engine{},
		Bundles:      bundles,
		Idempotency:  idempotency.NewMemoryStore(),
		Adapters:     adapter.NewRegistry(adapter.NewStubAdapter()),
		Spend:        gateway.NewMemorySpendTracker(),
		Trust:        trust.New(trust.DefaultThresholds()),
		ReceiptHook:  hook,
	}, 2)
	t.Cleanup(gw.Close)
	return gw
}

func defaultBundle(tenantID string) *contracts.PolicyBundle {
	return &contracts.PolicyBundle{ID: "b1", TenantID: tenantID, AllowedScopes: []string{"read"}}
}

func TestGateway_Execute_TenantMismatch(t *testing.T) {
	manifest := liveManifest("cap-1")
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	_, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read",
	}, "tenant-2", false)
	assert.Error(t, err)
}

func TestGateway_Execute_TenantMismatch_BypassedByIntentBridge(t *testing.T) {
	manifest := liveManifest("cap-1")
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	receipt, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read",
	}, "tenant-2", true)
	require.NoError(t, err)
	assert.Equal(t, contracts.ExecutionSuccess, receipt.Status)
}

func TestGateway_Execute_CapabilityNotFound(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	bundles := gateway.NewMemoryBundleStore()
	hook, err := receipthook.New(receipthook.Config{DryRun: true})
	require.NoError(t, err)

	gw := gateway.New(gateway.Gateway{
		Capabilities: capcache.New(reg),
		Policy:       &policy.Engine{},
		Bundles:      bundles,
		Idempotency:  idempotency.NewMemoryStore(),
		Adapters:     adapter.NewRegistry(adapter.NewStubAdapter()),
		Trust:        trust.New(trust.DefaultThresholds()),
		ReceiptHook:  hook,
	}, 2)
	defer gw.Close()
	reg.SetUnreachable(true)
	gw.Capabilities.DisableStub = true

	_, err = gw.Execute(context.Background(), "missing", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read",
	}, "tenant-1", false)
	assert.Error(t, err)
}

func TestGateway_Execute_CapabilityInactive(t *testing.T) {
	manifest := liveManifest("cap-1")
	manifest.Status = contracts.StatusDraft
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	_, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read",
	}, "tenant-1", false)
	assert.Error(t, err)
}

func TestGateway_Execute_PolicyDenied(t *testing.T) {
	manifest := liveManifest("cap-1")
	bundle := defaultBundle("tenant-1")
	bundle.AllowedScopes = []string{"write"}
	gw := newTestGateway(t, manifest, bundle)

	_, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read",
	}, "tenant-1", false)
	assert.Error(t, err)
}

func TestGateway_Execute_Success(t *testing.T) {
	manifest := liveManifest("cap-1")
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	receipt, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read", Params: map[string]interface{}{"x": 1},
	}, "tenant-1", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.ExecutionSuccess, receipt.Status)
	assert.NotEmpty(t, receipt.InputHash)
	assert.NotEmpty(t, receipt.OutputHash)
	assert.False(t, receipt.Cached)
}

func TestGateway_Execute_IdempotentReplay(t *testing.T) {
	manifest := liveManifest("cap-1")
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	req := gateway.ExecuteRequest{TenantID: "tenant-1", Scope: "read", IdempotencyKey: "idem-1"}
	first, err := gw.Execute(context.Background(), "cap-1", req, "tenant-1", false)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := gw.Execute(context.Background(), "cap-1", req, "tenant-1", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
}

func TestGateway_Execute_InputSchemaInvalid(t *testing.T) {
	manifest := liveManifest("cap-1")
	manifest.InputSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name"},
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
		},
	}
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	_, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read", Params: map[string]interface{}{},
	}, "tenant-1", false)
	assert.Error(t, err)
}

func TestGateway_Execute_InputSchemaValid(t *testing.T) {
	manifest := liveManifest("cap-1")
	manifest.InputSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name"},
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
		},
	}
	gw := newTestGateway(t, manifest, defaultBundle("tenant-1"))

	receipt, err := gw.Execute(context.Background(), "cap-1", gateway.ExecuteRequest{
		TenantID: "tenant-1", Scope: "read", Params: map[string]interface{}{"name": "alice"},
	}, "tenant-1", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.ExecutionSuccess, receipt.Status)
}
