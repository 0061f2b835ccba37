package receipthook

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

type recordingArchiver struct {
	mu       sync.Mutex
	calls    int
	lastHash [32]byte
	err      error
}

func (a *recordingArchiver) Store(ctx context.Context, evidenceHash [32]byte, receipt *contracts.Receipt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.lastHash = evidenceHash
	return a.err
}

func (a *recordingArchiver) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestHook_Submit_NonSuccessReceiptIsSkipped(t *testing.T) {
	hook, err := New(Config{DryRun: true})
	require.NoError(t, err)

	receipt := contracts.NewReceipt("cap-1", "1.0.0", "tenant-1", "", "in", "out", 10, contracts.ExecutionFailure)

	record, err := hook.Submit(context.Background(), receipt, "stub", "scope")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestHook_Submit_DryRunShortCircuits(t *testing.T) {
	archiver := &recordingArchiver{}
	hook, err := New(Config{DryRun: true, Archiver: archiver})
	require.NoError(t, err)

	receipt := sampleReceipt()
	record, err := hook.Submit(context.Background(), receipt, "stub", "scope")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, ChainDryRun, record.Chain)
	assert.Empty(t, record.TxHash)
	assert.Equal(t, 1, archiver.callCount(), "archive still runs best-effort even in dry-run mode")
}

func TestHook_Submit_NoRPCURLFallsBackToDryRunNoRPC(t *testing.T) {
	hook, err := New(Config{DryRun: false, RPCURL: ""})
	require.NoError(t, err)

	receipt := sampleReceipt()
	record, err := hook.Submit(context.Background(), receipt, "stub", "scope")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, ChainDryRunNoRPC, record.Chain)
}

func TestHook_Submit_NoSigningKeyFallsBackToDryRunNoKey(t *testing.T) {
	hook, err := New(Config{DryRun: false, RPCURL: "http://127.0.0.1:1", SigningKey: nil})
	require.NoError(t, err)

	receipt := sampleReceipt()
	record, err := hook.Submit(context.Background(), receipt, "stub", "scope")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, ChainDryRunNoKey, record.Chain)
}

func TestHook_Submit_ArchiverFailureNeverFailsSubmit(t *testing.T) {
	archiver := &recordingArchiver{err: assertErr{}}
	hook, err := New(Config{DryRun: true, Archiver: archiver})
	require.NoError(t, err)

	receipt := sampleReceipt()
	record, err := hook.Submit(context.Background(), receipt, "stub", "scope")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, ChainDryRun, record.Chain)
	assert.Equal(t, 1, archiver.callCount())
}

func TestHook_Submit_NilArchiverIsSkippedSilently(t *testing.T) {
	hook, err := New(Config{DryRun: true})
	require.NoError(t, err)

	receipt := sampleReceipt()
	assert.NotPanics(t, func() {
		_, err := hook.Submit(context.Background(), receipt, "stub", "scope")
		require.NoError(t, err)
	})
}

func TestSolverIDBytes32_LeftPads(t *testing.T) {
	b := solverIDBytes32(0x0102030405060708)
	for i := 0; i < 24; i++ {
		assert.Equal(t, byte(0), b[i], "byte %d must be zero padding", i)
	}
	assert.Equal(t, [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, [8]byte(b[24:32]))
}

func TestSolverIDBytes32_DistinctPerSolver(t *testing.T) {
	assert.NotEqual(t, solverIDBytes32(1), solverIDBytes32(2))
}

func TestHook_Submit_DryRunKeepsSolverNonceZero(t *testing.T) {
	hook, err := New(Config{DryRun: true})
	require.NoError(t, err)

	receipt := sampleReceipt()
	record, err := hook.Submit(context.Background(), receipt, "stub", "scope")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, uint64(0), record.SolverNonce, "no chain is reachable in dry-run mode, so the nonce cannot be read")
}

type assertErr struct{}

func (assertErr) Error() string { return "archive failed" }
