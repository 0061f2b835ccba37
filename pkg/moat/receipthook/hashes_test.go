package receipthook

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

func sampleReceipt() *contracts.Receipt {
	r := contracts.NewReceipt("cap-1", "1.0.0", "tenant-1", "idem-1", "inhash", "outhash", 42, contracts.ExecutionSuccess)
	r.Result = map[string]interface{}{"ok": true}
	return r
}

func TestBuildIntentEnvelope_FieldsDeterministic(t *testing.T) {
	receipt := sampleReceipt()
	agent := common.HexToAddress("0x00000000000000000000000000000000000001")

	env1 := BuildIntentEnvelope(receipt, 0, agent, 7, 0)
	env2 := BuildIntentEnvelope(receipt, 0, agent, 7, 0)

	assert.Equal(t, env1, env2)
	assert.EqualValues(t, 1, env1.Version)
	assert.Equal(t, uint64(7), env1.AgentID)
	assert.Equal(t, uint8(0), env1.Domain)
	assert.Equal(t, parseTimestamp(receipt.Timestamp)+DefaultExpirySeconds, env1.Expiry)
}

func TestBuildIntentEnvelope_DomainDistinguishesOnChain(t *testing.T) {
	receipt := sampleReceipt()
	agent := common.HexToAddress("0x00000000000000000000000000000000000001")

	offChain := BuildIntentEnvelope(receipt, 0, agent, 1, 0)
	onChain := BuildIntentEnvelope(receipt, 1, agent, 1, 0)

	assert.NotEqual(t, offChain, onChain)
}

func TestIntentHash_DeterministicAndDistinct(t *testing.T) {
	receipt := sampleReceipt()
	agent := common.HexToAddress("0x00000000000000000000000000000000000001")
	env := BuildIntentEnvelope(receipt, 0, agent, 1, 0)

	h1, err := IntentHash(env)
	require.NoError(t, err)
	h2, err := IntentHash(env)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := BuildIntentEnvelope(receipt, 0, agent, 2, 0)
	h3, err := IntentHash(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestOutcomeHash_DistinctForDifferentResults(t *testing.T) {
	h1, err := OutcomeHash(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	h2, err := OutcomeHash(map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	h3, err := OutcomeHash(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h3)
}

func TestConstraintsHash_DistinctPerField(t *testing.T) {
	h1, err := ConstraintsHash("cap-1", "scope-a", "tenant-1")
	require.NoError(t, err)
	h2, err := ConstraintsHash("cap-1", "scope-b", "tenant-1")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestRouteHash_DistinctPerAdapter(t *testing.T) {
	h1, err := RouteHash("http_proxy", "cap-1")
	require.NoError(t, err)
	h2, err := RouteHash("stub", "cap-1")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestEvidenceHash_ChangesWithReceiptFields(t *testing.T) {
	r1 := sampleReceipt()
	r2 := sampleReceipt()
	r2.OutputHash = "different-output"

	h1, err := EvidenceHash(r1)
	require.NoError(t, err)
	h2, err := EvidenceHash(r2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestFiveHashes_AreMutuallyDistinct(t *testing.T) {
	receipt := sampleReceipt()
	agent := common.HexToAddress("0x00000000000000000000000000000000000001")
	env := BuildIntentEnvelope(receipt, 0, agent, 1, 0)

	intentHash, err := IntentHash(env)
	require.NoError(t, err)
	outcomeHash, err := OutcomeHash(receipt.Result)
	require.NoError(t, err)
	constraintsHash, err := ConstraintsHash(receipt.CapabilityID, "scope", receipt.TenantID)
	require.NoError(t, err)
	routeHash, err := RouteHash("stub", receipt.CapabilityID)
	require.NoError(t, err)
	evidenceHash, err := EvidenceHash(receipt)
	require.NoError(t, err)

	all := [][32]byte{intentHash, outcomeHash, constraintsHash, routeHash, evidenceHash}
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			assert.NotEqual(t, all[i], all[j], "hash %d and %d collided", i, j)
		}
	}
}
