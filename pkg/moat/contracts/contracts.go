// Package contracts holds the Moat data model: CapabilityManifest,
// PolicyBundle, PolicyDecision, Receipt, OutcomeEvent, CapabilityStats, and
// the on-chain ReceiptChainRecord. All types are treated as immutable after
// construction; mutation happens by constructing a new value.
package contracts

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// RiskClass is an ordered severity tier for capability risk classification.
type RiskClass string

const (
	RiskLow      RiskClass = "low"
	RiskMedium   RiskClass = "medium"
	RiskHigh     RiskClass = "high"
	RiskCritical RiskClass = "critical"
)

// CapabilityStatus is the lifecycle state of a published capability.
type CapabilityStatus string

const (
	StatusDraft      CapabilityStatus = "draft"
	StatusPublished  CapabilityStatus = "published"
	StatusActive     CapabilityStatus = "active"
	StatusDeprecated CapabilityStatus = "deprecated"
	StatusArchived   CapabilityStatus = "archived"
)

// IsLive reports whether the capability may be invoked (spec §4.9 step 2).
func (s CapabilityStatus) IsLive() bool {
	return s == StatusActive || s == StatusPublished
}

// ExecutionStatus is the terminal status of a single capability invocation.
type ExecutionStatus string

const (
	ExecutionSuccess      ExecutionStatus = "success"
	ExecutionFailure      ExecutionStatus = "failure"
	ExecutionTimeout      ExecutionStatus = "timeout"
	ExecutionPolicyDenied ExecutionStatus = "policy_denied"
)

// ErrorTaxonomy is a coarse-grained error category for outcome reporting.
type ErrorTaxonomy string

const (
	ErrorAuth        ErrorTaxonomy = "auth"
	ErrorRateLimit   ErrorTaxonomy = "rate_limit"
	ErrorTimeout     ErrorTaxonomy = "timeout"
	ErrorProvider5xx ErrorTaxonomy = "provider_5xx"
	ErrorValidation  ErrorTaxonomy = "validation"
	ErrorPolicyDenied ErrorTaxonomy = "policy_denied"
	ErrorUnknown     ErrorTaxonomy = "unknown"
)

func newUUID() string { return uuid.NewString() }

// CapabilityManifest is a registry entry describing a verifiable agent
// capability.
type CapabilityManifest struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Version         string                 `json:"version"`
	Provider        string                 `json:"provider"`
	Method          string                 `json:"method"`
	Description     string                 `json:"description"`
	Scopes          []string               `json:"scopes"`
	InputSchema     map[string]interface{} `json:"input_schema"`
	OutputSchema    map[string]interface{} `json:"output_schema"`
	RiskClass       RiskClass              `json:"risk_class"`
	DomainAllowlist []string               `json:"domain_allowlist"`
	Status          CapabilityStatus       `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`

	// Stub marks a synthetic record returned by the capability cache when
	// the upstream registry was unreachable (spec §4.3, §9 Open Question 4).
	Stub bool `json:"_stub,omitempty"`
}

// Validate enforces the semver pattern and the created_at <= updated_at
// invariant.
func (m *CapabilityManifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("contracts: capability id is required")
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return fmt.Errorf("contracts: version %q is not valid semver: %w", m.Version, err)
	}
	if m.UpdatedAt.Before(m.CreatedAt) {
		return fmt.Errorf("contracts: updated_at must not be earlier than created_at")
	}
	return nil
}

// PolicyBundle is a tenant-scoped set of rules governing one capability.
type PolicyBundle struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	CapabilityID    string    `json:"capability_id"`
	AllowedScopes   []string  `json:"allowed_scopes"`
	BudgetDaily     *int64    `json:"budget_daily,omitempty"`
	BudgetMonthly   *int64    `json:"budget_monthly,omitempty"` // reserved, never evaluated — see DESIGN.md
	DomainAllowlist []string  `json:"domain_allowlist"`
	RequireApproval bool      `json:"require_approval"`
	CreatedAt       time.Time `json:"created_at"`

	// ExprRule is an optional CEL expression evaluated as an escape hatch
	// beyond the fixed priority chain's exact-match rules (e.g. scope
	// prefix matches, compound domain predicates). Empty means "no
	// additional rule" — the priority chain's outcome is unaffected.
	ExprRule string `json:"expr_rule,omitempty"`
}

// PolicyDecision is the immutable result of evaluating a PolicyBundle
// against a request.
type PolicyDecision struct {
	ID             string    `json:"id"`
	PolicyBundleID string    `json:"policy_bundle_id"`
	TenantID       string    `json:"tenant_id"`
	CapabilityID   string    `json:"capability_id"`
	Allowed        bool      `json:"allowed"`
	RuleHit        string    `json:"rule_hit"`
	EvaluationMS   float64   `json:"evaluation_ms"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
}

// NewDecision constructs a PolicyDecision, synthesizing a request id when
// the caller did not supply one.
func NewDecision(bundleID, tenantID, capabilityID string, allowed bool, ruleHit string, evalMS float64, requestID string) *PolicyDecision {
	if requestID == "" {
		requestID = newUUID()
	}
	return &PolicyDecision{
		ID:             newUUID(),
		PolicyBundleID: bundleID,
		TenantID:       tenantID,
		CapabilityID:   capabilityID,
		Allowed:        allowed,
		RuleHit:        ruleHit,
		EvaluationMS:   evalMS,
		Timestamp:      time.Now().UTC(),
		RequestID:      requestID,
	}
}

// Receipt is the immutable audit record produced after each capability
// invocation. Inputs and outputs are stored only as SHA-256 hashes of their
// redacted representation — raw payloads are never persisted.
type Receipt struct {
	ID                string                 `json:"id"`
	CapabilityID      string                 `json:"capability_id"`
	CapabilityVersion string                 `json:"capability_version"`
	TenantID          string                 `json:"tenant_id"`
	Timestamp         time.Time              `json:"timestamp"`
	IdempotencyKey    string                 `json:"idempotency_key"`
	InputHash         string                 `json:"input_hash"`
	OutputHash        string                 `json:"output_hash"`
	LatencyMS         float64                `json:"latency_ms"`
	Status            ExecutionStatus        `json:"status"`
	ErrorCode         string                 `json:"error_code,omitempty"`
	ProviderRequestID string                 `json:"provider_request_id,omitempty"`
	PolicyRiskClass   RiskClass              `json:"policy_risk_class,omitempty"`
	Result            map[string]interface{} `json:"-"` // kept off the wire receipt, used only for hashing/hooks

	// Cached reports whether this receipt was served from the idempotency
	// store rather than freshly executed.
	Cached bool `json:"cached"`

	// Web3 carries correlation metadata for receipts produced via the
	// inbound intent bridge, or consumed by the outbound receipt chain hook.
	Web3 *Web3ExecutionContext `json:"web3,omitempty"`
}

// NewReceipt constructs a Receipt with a fresh ID and current timestamp.
func NewReceipt(capabilityID, capabilityVersion, tenantID, idempotencyKey, inputHash, outputHash string, latencyMS float64, status ExecutionStatus) *Receipt {
	return &Receipt{
		ID:                newUUID(),
		CapabilityID:      capabilityID,
		CapabilityVersion: capabilityVersion,
		TenantID:          tenantID,
		Timestamp:         time.Now().UTC(),
		IdempotencyKey:    idempotencyKey,
		InputHash:         inputHash,
		OutputHash:        outputHash,
		LatencyMS:         latencyMS,
		Status:            status,
	}
}

// OutcomeEvent is a lightweight analytic derived from a Receipt and emitted
// to the trust engine. Invariant: Success == (ErrorTaxonomy == "").
type OutcomeEvent struct {
	ID            string        `json:"id"`
	ReceiptID     string        `json:"receipt_id"`
	CapabilityID  string        `json:"capability_id"`
	TenantID      string        `json:"tenant_id"`
	Success       bool          `json:"success"`
	LatencyMS     float64       `json:"latency_ms"`
	ErrorTaxonomy ErrorTaxonomy `json:"error_taxonomy,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewOutcomeEvent constructs an OutcomeEvent, enforcing the
// success/error_taxonomy invariant.
func NewOutcomeEvent(receiptID, capabilityID, tenantID string, success bool, latencyMS float64, taxonomy ErrorTaxonomy) (*OutcomeEvent, error) {
	if !success && taxonomy == "" {
		return nil, fmt.Errorf("contracts: error_taxonomy must be set when success=false")
	}
	if success && taxonomy != "" {
		return nil, fmt.Errorf("contracts: error_taxonomy must be empty when success=true")
	}
	return &OutcomeEvent{
		ID:            newUUID(),
		ReceiptID:     receiptID,
		CapabilityID:  capabilityID,
		TenantID:      tenantID,
		Success:       success,
		LatencyMS:     latencyMS,
		ErrorTaxonomy: taxonomy,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// CapabilityStats is the per-capability reliability summary recomputed on
// read from the trust engine's event log.
type CapabilityStats struct {
	CapabilityID      string     `json:"capability_id"`
	SuccessRate7d      float64    `json:"success_rate_7d"`
	P95LatencyMS       float64    `json:"p95_latency_ms"`
	TotalExecutions7d  int        `json:"total_executions_7d"`
	LastChecked        *time.Time `json:"last_checked"`
	Verified           bool       `json:"verified"`
	ShouldHide         bool       `json:"should_hide"`
	ShouldThrottle     bool       `json:"should_throttle"`
}

// Web3ExecutionContext carries on-chain correlation metadata attached to
// receipts that touch the chain, either inbound (intent bridge) or outbound
// (receipt chain hook).
type Web3ExecutionContext struct {
	ChainID         int64  `json:"chain_id"`
	ContractAddress string `json:"contract_address,omitempty"`
	TxHash          string `json:"tx_hash,omitempty"`
	BlockNumber     uint64 `json:"block_number,omitempty"`
	RPCURLDomain    string `json:"rpc_url_domain,omitempty"`
	Direction       string `json:"direction"` // "outbound" | "inbound"
	IntentHash      string `json:"intent_hash,omitempty"`
}

// ReceiptChainRecord is the on-chain record produced by the receipt chain
// hook: five linked keccak-256 hashes plus timing, solver identity and
// signature.
type ReceiptChainRecord struct {
	IntentHash       [32]byte `json:"-"`
	ConstraintsHash  [32]byte `json:"-"`
	RouteHash        [32]byte `json:"-"`
	OutcomeHash      [32]byte `json:"-"`
	EvidenceHash     [32]byte `json:"-"`
	CreatedAt        uint64   `json:"created_at"`
	Expiry           uint64   `json:"expiry"`
	SolverID         uint64   `json:"solver_id"`
	Signature        []byte   `json:"-"`
	SolverNonce      uint64   `json:"solver_nonce"`

	// Chain reports one of: dry_run, dry_run_no_rpc, dry_run_no_key,
	// sepolia_failed, sepolia.
	Chain     string `json:"chain"`
	Error     string `json:"error,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	Block     uint64 `json:"block,omitempty"`
	GasUsed   uint64 `json:"gas_used,omitempty"`
	ReceiptID string `json:"receipt_id,omitempty"`
}
