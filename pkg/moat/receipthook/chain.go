package receipthook

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// Chain fallback states, exactly as spec §4.7's table names them.
const (
	ChainDryRun       = "dry_run"
	ChainDryRunNoRPC  = "dry_run_no_rpc"
	ChainDryRunNoKey  = "dry_run_no_key"
	ChainSepoliaFail  = "sepolia_failed"
	ChainSepolia      = "sepolia"
)

// confirmWait is the maximum time to wait for transaction inclusion
// (spec §4.7 step 4: "wait up to 60 s").
const confirmWait = 60 * time.Second

// Config configures the receipt chain hook.
type Config struct {
	DryRun            bool
	RPCURL            string
	SigningKey        *ecdsa.PrivateKey
	ChainID           int64
	ReceiptHubAddress string
	SolverID          uint64
	AgentAddress      common.Address
	AgentID           uint64

	// Archiver optionally persists the raw receipt blob backing
	// EvidenceHash to an artifact store. Nil disables archival.
	Archiver EvidenceArchiver
}

// Hook builds and, when configured, submits chain receipts for completed
// executions. It is constructed once at process start and is safe for
// concurrent use (each Submit call opens its own RPC round trips).
type Hook struct {
	cfg Config
	abi abi.ABI
}

// New constructs a Hook from cfg, parsing the embedded contract ABI once.
func New(cfg Config) (*Hook, error) {
	parsed, err := abi.JSON(strings.NewReader(receiptHubABI))
	if err != nil {
		return nil, fmt.Errorf("receipthook: parse abi: %w", err)
	}
	return &Hook{cfg: cfg, abi: parsed}, nil
}

// Submit builds the five hashes for receipt, signs them, and — unless
// running in dry-run mode or missing RPC/key configuration — submits the
// receipt to the configured chain. Non-success gateway receipts are
// skipped entirely, returning (nil, nil), per spec §4.7: "Non-success
// gateway receipts are skipped."
func (h *Hook) Submit(ctx context.Context, receipt *contracts.Receipt, adapterName, scope string) (*contracts.ReceiptChainRecord, error) {
	if receipt.Status != contracts.ExecutionSuccess {
		return nil, nil
	}

	// Step 1 of spec §4.7's on-chain submission sequence: read the
	// solver's current replay-protection nonce from the contract before
	// building the signed envelope. Dry-run and missing RPC/key
	// configurations never reach the chain, so the nonce stays at its
	// zero value in those cases (handled by the fallback checks below).
	var client *ethclient.Client
	var solverNonce uint64
	if !h.cfg.DryRun && h.cfg.RPCURL != "" && h.cfg.SigningKey != nil {
		var err error
		client, err = ethclient.DialContext(ctx, h.cfg.RPCURL)
		if err != nil {
			return &contracts.ReceiptChainRecord{Chain: ChainSepoliaFail, Error: fmt.Errorf("dial rpc: %w", err).Error()}, nil
		}
		defer client.Close()

		solverNonce, err = h.readSolverNonce(ctx, client)
		if err != nil {
			return &contracts.ReceiptChainRecord{Chain: ChainSepoliaFail, Error: fmt.Errorf("read solver nonce: %w", err).Error()}, nil
		}
	}

	env := BuildIntentEnvelope(receipt, 0, h.cfg.AgentAddress, h.cfg.AgentID, solverNonce)
	intentHash, err := IntentHash(env)
	if err != nil {
		return nil, fmt.Errorf("receipthook: intent hash: %w", err)
	}
	outcomeHash, err := OutcomeHash(receipt.Result)
	if err != nil {
		return nil, fmt.Errorf("receipthook: outcome hash: %w", err)
	}
	constraintsHash, err := ConstraintsHash(receipt.CapabilityID, scope, receipt.TenantID)
	if err != nil {
		return nil, fmt.Errorf("receipthook: constraints hash: %w", err)
	}
	routeHash, err := RouteHash(adapterName, receipt.CapabilityID)
	if err != nil {
		return nil, fmt.Errorf("receipthook: route hash: %w", err)
	}
	evidenceHash, err := EvidenceHash(receipt)
	if err != nil {
		return nil, fmt.Errorf("receipthook: evidence hash: %w", err)
	}
	h.archive(ctx, evidenceHash, receipt)

	record := &contracts.ReceiptChainRecord{
		IntentHash:      intentHash,
		ConstraintsHash: constraintsHash,
		RouteHash:       routeHash,
		OutcomeHash:     outcomeHash,
		EvidenceHash:    evidenceHash,
		CreatedAt:       uint64(time.Now().Unix()),
		Expiry:          env.Expiry,
		SolverID:        h.cfg.SolverID,
		SolverNonce:     solverNonce,
	}

	// Five fallback states, per spec §4.7's table.
	if h.cfg.DryRun {
		record.Chain = ChainDryRun
		return record, nil
	}
	if h.cfg.RPCURL == "" {
		record.Chain = ChainDryRunNoRPC
		return record, nil
	}
	if h.cfg.SigningKey == nil {
		record.Chain = ChainDryRunNoKey
		return record, nil
	}

	sig, err := SignTypedData(FiveHashes{
		IntentHash:      intentHash,
		ConstraintsHash: constraintsHash,
		RouteHash:       routeHash,
		OutcomeHash:     outcomeHash,
		EvidenceHash:    evidenceHash,
		CreatedAt:       record.CreatedAt,
		Expiry:          record.Expiry,
		SolverID:        record.SolverID,
	}, h.cfg.ChainID, h.cfg.ReceiptHubAddress, h.cfg.SigningKey)
	if err != nil {
		record.Chain = ChainSepoliaFail
		record.Error = err.Error()
		return record, nil
	}
	record.Signature = sig

	if err := h.submitOnChain(ctx, client, record); err != nil {
		record.Chain = ChainSepoliaFail
		record.Error = err.Error()
		return record, nil
	}
	record.Chain = ChainSepolia
	return record, nil
}

// solverIDBytes32 left-pads solverID into the bytes32 the contract's
// solverNonces(bytes32) mapping key expects, matching the original's
// _to_bytes32 padding of the solver's on-chain identity.
func solverIDBytes32(solverID uint64) [32]byte {
	var b [32]byte
	binary.BigEndian.PutUint64(b[24:], solverID)
	return b
}

// readSolverNonce reads the contract's per-solver replay-protection
// counter (spec §4.7 step 1: "read current solver nonce from the
// contract, a per-solver counter").
func (h *Hook) readSolverNonce(ctx context.Context, client *ethclient.Client) (uint64, error) {
	callData, err := h.abi.Pack("solverNonces", solverIDBytes32(h.cfg.SolverID))
	if err != nil {
		return 0, fmt.Errorf("pack solverNonces: %w", err)
	}
	contractAddr := common.HexToAddress(h.cfg.ReceiptHubAddress)
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: callData}, nil)
	if err != nil {
		return 0, fmt.Errorf("call solverNonces: %w", err)
	}
	results, err := h.abi.Unpack("solverNonces", out)
	if err != nil {
		return 0, fmt.Errorf("unpack solverNonces: %w", err)
	}
	nonce, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected solverNonces return type %T", results[0])
	}
	if !nonce.IsUint64() {
		return 0, fmt.Errorf("solver nonce overflow: %s", nonce.String())
	}
	return nonce.Uint64(), nil
}

// submitOnChain performs the remaining on-chain submission steps of spec
// §4.7: build+sign+broadcast the transaction, wait for inclusion, parse
// the ReceiptPosted event. client is the connection already dialed (and
// used to read the solver nonce) by Submit.
func (h *Hook) submitOnChain(ctx context.Context, client *ethclient.Client, record *contracts.ReceiptChainRecord) error {
	fromAddress := crypto.PubkeyToAddress(h.cfg.SigningKey.PublicKey)
	contractAddr := common.HexToAddress(h.cfg.ReceiptHubAddress)

	nonce, err := client.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("get gas price: %w", err)
	}

	callData, err := h.abi.Pack("postReceipt", struct {
		IntentHash      [32]byte
		ConstraintsHash [32]byte
		RouteHash       [32]byte
		OutcomeHash     [32]byte
		EvidenceHash    [32]byte
		CreatedAt       uint64
		Expiry          uint64
		SolverID        uint64
		Signature       []byte
	}{
		record.IntentHash, record.ConstraintsHash, record.RouteHash,
		record.OutcomeHash, record.EvidenceHash,
		record.CreatedAt, record.Expiry, record.SolverID, record.Signature,
	}, big.NewInt(0))
	if err != nil {
		return fmt.Errorf("pack postReceipt: %w", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: fromAddress,
		To:   &contractAddr,
		Data: callData,
	})
	if err != nil {
		gasLimit = 300000 // conservative fallback when estimation itself fails
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contractAddr,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     callData,
	})

	chainID := big.NewInt(h.cfg.ChainID)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), h.cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("send tx: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmWait)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, client, signedTx)
	if err != nil {
		return fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction reverted")
	}

	record.TxHash = signedTx.Hash().Hex()
	record.Block = receipt.BlockNumber.Uint64()
	record.GasUsed = receipt.GasUsed

	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 {
			continue
		}
		event, err := h.abi.EventByID(log.Topics[0])
		if err != nil || event.Name != "ReceiptPosted" {
			continue
		}
		// receiptId and intentHash are indexed, so they land in the log's
		// topics rather than its data: topics[1]=receiptId, topics[2]=intentHash.
		if len(log.Topics) >= 2 {
			record.ReceiptID = log.Topics[1].Hex()
		}
		break
	}

	return nil
}
