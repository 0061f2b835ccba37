package receipthook

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// FiveHashes bundles the five linked hashes plus the timing/solver fields
// that go into the typed-data signature (spec §4.7).
type FiveHashes struct {
	IntentHash      [32]byte
	ConstraintsHash [32]byte
	RouteHash       [32]byte
	OutcomeHash     [32]byte
	EvidenceHash    [32]byte
	CreatedAt       uint64
	Expiry          uint64
	SolverID        uint64
}

// typedData builds the EIP-712 structured document for an IntentReceipt,
// domain-separated by (name="MoatIntentReceipt", version="1", chainId,
// verifyingContract), per spec §4.7.
func typedData(h FiveHashes, chainID int64, verifyingContract string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"IntentReceipt": {
				{Name: "intentHash", Type: "bytes32"},
				{Name: "constraintsHash", Type: "bytes32"},
				{Name: "routeHash", Type: "bytes32"},
				{Name: "outcomeHash", Type: "bytes32"},
				{Name: "evidenceHash", Type: "bytes32"},
				{Name: "createdAt", Type: "uint64"},
				{Name: "expiry", Type: "uint64"},
				{Name: "solverId", Type: "uint64"},
			},
		},
		PrimaryType: "IntentReceipt",
		Domain: apitypes.TypedDataDomain{
			Name:              "MoatIntentReceipt",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(chainID)),
			VerifyingContract: verifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"intentHash":      hexBytes(h.IntentHash[:]),
			"constraintsHash": hexBytes(h.ConstraintsHash[:]),
			"routeHash":       hexBytes(h.RouteHash[:]),
			"outcomeHash":     hexBytes(h.OutcomeHash[:]),
			"evidenceHash":    hexBytes(h.EvidenceHash[:]),
			"createdAt":       fmt.Sprintf("%d", h.CreatedAt),
			"expiry":          fmt.Sprintf("%d", h.Expiry),
			"solverId":        fmt.Sprintf("%d", h.SolverID),
		},
	}
}

func hexBytes(b []byte) string {
	return "0x" + fmt.Sprintf("%x", b)
}

// SignTypedData hashes the EIP-712 structured document and signs it with
// the solver's private key, returning a 65-byte (r,s,v) signature with
// v in {27,28} per spec §4.7.
func SignTypedData(h FiveHashes, chainID int64, verifyingContract string, key *ecdsa.PrivateKey) ([]byte, error) {
	td := typedData(h, chainID, verifyingContract)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("receipthook: domain hash: %w", err)
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("receipthook: message hash: %w", err)
	}

	digest := crypto.Keccak256(
		[]byte{0x19, 0x01},
		domainSeparator,
		messageHash,
	)

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("receipthook: sign: %w", err)
	}
	// go-ethereum's crypto.Sign returns v in {0,1}; EIP-712/Ethereum tx
	// signatures conventionally carry v in {27,28}.
	sig[64] += 27
	return sig, nil
}

// RecoverSigner recovers the signing address from a typed-data signature,
// used by the round-trip law in spec §8 ("signing then recovering the
// signer address yields the configured solver address").
func RecoverSigner(h FiveHashes, chainID int64, verifyingContract string, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("receipthook: signature must be 65 bytes")
	}
	td := typedData(h, chainID, verifyingContract)
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return "", err
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return "", err
	}
	digest := crypto.Keccak256([]byte{0x19, 0x01}, domainSeparator, messageHash)

	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return "", fmt.Errorf("receipthook: recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
