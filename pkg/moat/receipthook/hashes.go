// Package receipthook implements the Moat receipt chain hook (spec §4.7):
// building the five linked keccak-256 hashes, signing them as EIP-712
// typed data, and submitting the record to an EVM chain with nonce and gas
// discipline. Best-effort: failures here never alter the caller-visible
// gateway response.
//
// Hash computation and the contract surface are grounded on
// original_source/services/gateway/app/hooks/irsb_receipt.py. The
// go-ethereum client idiom (nonce/gas/sign/broadcast/wait, ABI event
// parsing) is grounded on
// certenIO-certen-validator/pkg/ethereum/client.go and
// pkg/execution/commitment_builder.go — go-ethereum itself is absent from
// Mindburn-Labs-helm's go.mod, since that codebase's own receipt chain is
// off-chain-only (Ed25519).
package receipthook

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jeremylongshore/moat/pkg/canonicalize"
	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// DefaultExpirySeconds is added to the intent's timestamp when no explicit
// expiry is supplied (spec §4.7: "expiry = timestamp + 86400 if zero").
const DefaultExpirySeconds = 86400

// CanonicalIntentEnvelope mirrors the on-chain typed struct
// CanonicalIntentEnvelope(uint8,bytes32,address,uint256,uint8,bytes32,bytes32,uint256,uint64,uint64,bytes32)
// used to compute intent_hash. Field order matches the ABI tuple exactly.
type CanonicalIntentEnvelope struct {
	Version         uint8
	TenantID        [32]byte
	AgentAddress    common.Address
	AgentID         uint64 // encoded as uint256 on-chain, represented as uint64 here (spec: "configured numeric")
	Domain          uint8  // 0 = off-chain, 1 = on-chain
	ActionHash      [32]byte
	ConstraintsHash [32]byte
	Nonce           uint64
	Timestamp       uint64
	Expiry          uint64
	ExtensionHash   [32]byte
}

// keccak256 is a small local alias so call sites read like the spec prose.
func keccak256(data ...[]byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(data...))
}

func keccakString(s string) [32]byte {
	return keccak256([]byte(s))
}

// BuildIntentEnvelope fills CanonicalIntentEnvelope deterministically from
// a Receipt, per spec §4.7's field-by-field recipe. domain is 0 for
// off-chain executions, 1 for on-chain (inbound-intent-bridge-originated)
// ones. agentAddress/agentID are the configured solver identity.
func BuildIntentEnvelope(receipt *contracts.Receipt, domain uint8, agentAddress common.Address, agentID uint64, nonce uint64) CanonicalIntentEnvelope {
	ts := parseTimestamp(receipt.Timestamp)
	return CanonicalIntentEnvelope{
		Version:         1,
		TenantID:        keccakString(receipt.TenantID),
		AgentAddress:    agentAddress,
		AgentID:         agentID,
		Domain:          domain,
		ActionHash:      keccakString(receipt.CapabilityID + ":" + receipt.InputHash),
		ConstraintsHash: keccakString("moat:policy:" + receipt.TenantID + ":" + receipt.CapabilityID),
		Nonce:           nonce,
		Timestamp:       ts,
		Expiry:          ts + DefaultExpirySeconds,
		ExtensionHash:   [32]byte{},
	}
}

func parseTimestamp(t time.Time) uint64 {
	return uint64(t.Unix())
}

// intentEnvelopeType is the fixed type definition IntentHash is computed under.
const intentEnvelopeType = "CanonicalIntentEnvelope(uint8,bytes32,address,uint256,uint8,bytes32,bytes32,uint256,uint64,uint64,bytes32)"

// IntentHash is the typed-struct hash of the envelope: keccak-256 over
// keccak256(intentEnvelopeType) followed by the full ABI-tuple encoding of
// the fields, each left-padded to a 32-byte word, so the digest matches
// what an on-chain verifier computes over the same tuple.
func IntentHash(env CanonicalIntentEnvelope) ([32]byte, error) {
	typeHash := keccakString(intentEnvelopeType)
	buf := append([]byte{}, typeHash[:]...)
	buf = append(buf, uint64Bytes(uint64(env.Version))...)
	buf = append(buf, env.TenantID[:]...)
	buf = append(buf, common.LeftPadBytes(env.AgentAddress.Bytes(), 32)...)
	buf = append(buf, uint64Bytes(env.AgentID)...)
	buf = append(buf, uint64Bytes(uint64(env.Domain))...)
	buf = append(buf, env.ActionHash[:]...)
	buf = append(buf, env.ConstraintsHash[:]...)
	buf = append(buf, uint64Bytes(env.Nonce)...)
	buf = append(buf, uint64Bytes(env.Timestamp)...)
	buf = append(buf, uint64Bytes(env.Expiry)...)
	buf = append(buf, env.ExtensionHash[:]...)
	return keccak256(buf), nil
}

// uint64Bytes encodes v as a 32-byte big-endian ABI word.
func uint64Bytes(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

// legacyIntentHash is the original's simpler placeholder
// keccak(cap:input:tenant:ts). Retained only for documentation/fallback
// compatibility per the Open Question decision recorded in DESIGN.md —
// never called from the default path.
func legacyIntentHash(receipt *contracts.Receipt) [32]byte {
	return keccakString(receipt.CapabilityID + ":" + receipt.InputHash + ":" + receipt.TenantID + ":" + strconv.FormatInt(receipt.Timestamp.Unix(), 10))
}

// OutcomeHash hashes the sorted-key JSON of the receipt's result object.
func OutcomeHash(result map[string]interface{}) ([32]byte, error) {
	return canonicalKeccak(result)
}

// ConstraintsHash hashes { capability_id, scope, tenant_id }.
func ConstraintsHash(capabilityID, scope, tenantID string) ([32]byte, error) {
	return canonicalKeccak(map[string]interface{}{
		"capability_id": capabilityID,
		"scope":          scope,
		"tenant_id":      tenantID,
	})
}

// RouteHash hashes { adapter, capability_id }.
func RouteHash(adapterName, capabilityID string) ([32]byte, error) {
	return canonicalKeccak(map[string]interface{}{
		"adapter":        adapterName,
		"capability_id":  capabilityID,
	})
}

// EvidenceHash hashes the receipt's audit fields listed below (id through
// provider_request_id). policy_risk_class, cached, web3 and the result
// object are not part of the digest.
func EvidenceHash(receipt *contracts.Receipt) ([32]byte, error) {
	return canonicalKeccak(map[string]interface{}{
		"id":                  receipt.ID,
		"capability_id":       receipt.CapabilityID,
		"capability_version":  receipt.CapabilityVersion,
		"tenant_id":           receipt.TenantID,
		"timestamp":           receipt.Timestamp,
		"idempotency_key":     receipt.IdempotencyKey,
		"input_hash":          receipt.InputHash,
		"output_hash":         receipt.OutputHash,
		"latency_ms":          receipt.LatencyMS,
		"status":              receipt.Status,
		"error_code":          receipt.ErrorCode,
		"provider_request_id": receipt.ProviderRequestID,
	})
}

// canonicalKeccak JCS-canonicalizes v (sorted keys, no HTML escaping) and
// hashes the bytes with keccak-256, matching spec's "keccak(sorted JSON
// of ...)" recipe while reusing pkg/canonicalize's JCS encoder rather than
// a second hand-rolled one.
func canonicalKeccak(v interface{}) ([32]byte, error) {
	b, err := canonicalize.JCS(v)
	if err != nil {
		return [32]byte{}, err
	}
	return keccak256(b), nil
}
