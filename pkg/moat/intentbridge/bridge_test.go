package intentbridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/intentbridge"
)

type fakeExecutor struct {
	lastTenantID          string
	lastBypassTenantCheck bool
	lastCapabilityID      string
	err                   error
}

func (f *fakeExecutor) Execute(ctx context.Context, capabilityID string, req intentbridge.ExecuteRequest, callerTenantID string, bypassTenantCheck bool) (*contracts.Receipt, error) {
	f.lastTenantID = req.TenantID
	f.lastBypassTenantCheck = bypassTenantCheck
	f.lastCapabilityID = capabilityID
	if f.err != nil {
		return nil, f.err
	}
	return contracts.NewReceipt(capabilityID, "1.0.0", req.TenantID, "", "in", "out", 1, contracts.ExecutionSuccess), nil
}

func TestBridge_Accept_ResolvesViaCache(t *testing.T) {
	exec := &fakeExecutor{}
	bridge := intentbridge.New(exec, nil, nil)
	bridge.CacheTenant("0xSender", "tenant-1")

	receipt, err := bridge.Accept(context.Background(), intentbridge.InboundIntent{
		Sender: "0xsender", CapabilityID: "cap-1", IntentHash: "0xhash",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", exec.lastTenantID)
	assert.True(t, exec.lastBypassTenantCheck)
	assert.Equal(t, "inbound", receipt.Web3.Direction)
	assert.Equal(t, "0xhash", receipt.Web3.IntentHash)
}

func TestBridge_Accept_ResolvesViaRegistry(t *testing.T) {
	exec := &fakeExecutor{}
	registry := intentbridge.NewMemoryAgentRegistry()
	registry.Register("0xSender", "tenant-2")
	bridge := intentbridge.New(exec, registry, nil)

	_, err := bridge.Accept(context.Background(), intentbridge.InboundIntent{
		Sender: "0xsender", CapabilityID: "cap-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", exec.lastTenantID)
}

func TestBridge_Accept_ResolvesViaStaticFallback(t *testing.T) {
	exec := &fakeExecutor{}
	bridge := intentbridge.New(exec, nil, map[string]string{"0xSender": "tenant-3"})

	_, err := bridge.Accept(context.Background(), intentbridge.InboundIntent{
		Sender: "0xsender", CapabilityID: "cap-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-3", exec.lastTenantID)
}

func TestBridge_Accept_UnresolvedSenderFails(t *testing.T) {
	exec := &fakeExecutor{}
	bridge := intentbridge.New(exec, nil, nil)

	_, err := bridge.Accept(context.Background(), intentbridge.InboundIntent{
		Sender: "0xunknown", CapabilityID: "cap-1",
	})
	assert.ErrorIs(t, err, intentbridge.ErrSenderNotRegistered)
}

func TestBridge_Accept_CachePreferredOverRegistry(t *testing.T) {
	exec := &fakeExecutor{}
	registry := intentbridge.NewMemoryAgentRegistry()
	registry.Register("0xsender", "tenant-registry")
	bridge := intentbridge.New(exec, registry, nil)
	bridge.CacheTenant("0xsender", "tenant-cache")

	_, err := bridge.Accept(context.Background(), intentbridge.InboundIntent{
		Sender: "0xsender", CapabilityID: "cap-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-cache", exec.lastTenantID)
}

func TestBridge_Accept_ExecutorErrorPropagates(t *testing.T) {
	exec := &fakeExecutor{err: assertErr{}}
	bridge := intentbridge.New(exec, nil, map[string]string{"0xsender": "tenant-1"})

	_, err := bridge.Accept(context.Background(), intentbridge.InboundIntent{
		Sender: "0xsender", CapabilityID: "cap-1",
	})
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "executor failed" }
