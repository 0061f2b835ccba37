// Package gateway implements the execution gateway coordinator (spec
// §4.9): the ten-step request lifecycle that ties together the capability
// cache, policy engine, idempotency store, adapter registry, trust engine,
// and receipt chain hook.
//
// Grounded on pkg/executor/executor.go's SafeExecutor.Execute staged
// pipeline (idempotency check, gating, dispatch, receipt build,
// background scheduling), generalized from that LLM-tool-call gating
// semantics to Moat's capability-execution semantics.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/adapter"
	"github.com/jeremylongshore/moat/pkg/moat/capcache"
	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/idempotency"
	"github.com/jeremylongshore/moat/pkg/moat/moaterr"
	"github.com/jeremylongshore/moat/pkg/moat/policy"
	"github.com/jeremylongshore/moat/pkg/moat/receipthook"
	"github.com/jeremylongshore/moat/pkg/moat/redact"
	"github.com/jeremylongshore/moat/pkg/moat/trust"
)

// SpendPerSuccess is the reference design's flat per-execution cost (spec
// §9 Open Question 2: "1 cent per successful execution in the reference
// design"). Every successful execution records this amount; adapter.Result
// carries no cost field, so adapter-reported cost is not accounted.
const SpendPerSuccess = 1

// SpendTracker persists per-(tenant, capability, period) cents spent,
// used by the policy engine's daily-budget rule and the gateway's
// step-10 spend recorder.
type SpendTracker interface {
	CurrentDailySpend(ctx context.Context, tenantID, capabilityID string) (int64, error)
	RecordSpend(ctx context.Context, tenantID, capabilityID string, cents int64) error
}

// BundleStore resolves the active PolicyBundle for a (tenant, capability)
// pair.
type BundleStore interface {
	Get(ctx context.Context, tenantID, capabilityID string) (*contracts.PolicyBundle, bool)
}

// CredentialResolver resolves a tenant's opaque credential reference to
// the secret value passed only to the adapter, never logged (spec §4.9
// step 5). Backed by a vault implementation, an explicit out-of-scope
// collaborator per spec §1 — only the interface lives here.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID, capabilityID string) (string, error)
}

// ExecuteRequest is the gateway's entry request shape (spec §4.9, §6).
type ExecuteRequest struct {
	Params         map[string]interface{}
	TenantID       string
	Scope          string
	IdempotencyKey string
}

// Gateway coordinates the ten-step execution pipeline.
type Gateway struct {
	Capabilities *capcache.Cache
	Policy       *policy.Engine
	Bundles      BundleStore
	Idempotency  idempotency.Store
	Adapters     *adapter.Registry
	Schemas      *adapter.SchemaValidator
	Credentials  CredentialResolver
	Spend        SpendTracker
	Trust        *trust.Engine
	ReceiptHook  *receipthook.Hook

	Logger *slog.Logger

	background *workerPool
}

// New constructs a Gateway and starts its bounded background worker pool
// (spec §9: "a bounded worker pool consuming a channel/queue; enqueue-then-
// return from the request path").
func New(g Gateway, workers int) *Gateway {
	if g.Logger == nil {
		g.Logger = slog.Default()
	}
	if g.Schemas == nil {
		g.Schemas = adapter.NewSchemaValidator()
	}
	gw := g
	gw.background = newWorkerPool(workers, gw.Logger)
	return &gw
}

// Close stops the background worker pool.
func (g *Gateway) Close() { g.background.stop() }

// Execute runs the ten-step request lifecycle. bypassTenantCheck is set by
// the inbound intent bridge, which is a trusted ingester and does not
// carry caller auth (spec §4.8).
func (g *Gateway) Execute(ctx context.Context, capabilityID string, req ExecuteRequest, callerTenantID string, bypassTenantCheck bool) (*contracts.Receipt, error) {
	// Step 0: tenant consistency.
	if !bypassTenantCheck && req.TenantID != callerTenantID {
		return nil, &moaterr.Error{Kind: moaterr.KindPolicyDenied, RuleHit: "tenant_mismatch", TenantID: req.TenantID, CapabilityID: capabilityID}
	}

	// Step 1: fetch capability.
	manifest, err := g.Capabilities.Get(ctx, capabilityID)
	if err != nil {
		return nil, moaterr.NewCapabilityNotFound(capabilityID)
	}

	// Step 2: lifecycle check.
	if !manifest.Status.IsLive() {
		return nil, &moaterr.Error{Kind: moaterr.KindPolicyDenied, RuleHit: "capability_inactive", TenantID: req.TenantID, CapabilityID: capabilityID}
	}

	// Step 3: policy evaluation.
	bundle, _ := g.Bundles.Get(ctx, req.TenantID, capabilityID)
	spend, _ := g.spendOrZero(ctx, req.TenantID, capabilityID)
	decision := g.Policy.Evaluate(bundle, manifest, req.Scope, spend, "")
	if !decision.Allowed {
		return nil, moaterr.NewPolicyDenied(req.TenantID, capabilityID, decision.RuleHit)
	}

	// Step 4: idempotency check.
	if req.IdempotencyKey != "" {
		if cached, ok := g.Idempotency.Get(req.TenantID, req.IdempotencyKey); ok {
			out := *cached
			out.Cached = true
			return &out, nil
		}
	}

	// Step 5: credential resolution.
	var credential string
	if g.Credentials != nil {
		credential, _ = g.Credentials.Resolve(ctx, req.TenantID, capabilityID)
	}

	inputHash, err := redact.HashRedacted(req.Params)
	if err != nil {
		return nil, moaterr.NewInternal(fmt.Errorf("hash input: %w", err))
	}

	// Step 6: adapter dispatch, bracketed by input/output schema validation.
	if err := g.Schemas.Validate(capabilityID+":input", manifest.InputSchema, req.Params); err != nil {
		return nil, moaterr.NewSchemaInvalid(capabilityID, fmt.Errorf("input: %w", err))
	}

	start := time.Now()
	providerAdapter := g.Adapters.GetOrStub(manifest.Provider)
	result, execErr := providerAdapter.Execute(ctx, capabilityID, manifest.Name, req.Params, credential)
	latencyMS := float64(time.Since(start)) / float64(time.Millisecond)

	status := contracts.ExecutionSuccess
	var errorCode string
	var resultMap map[string]interface{}
	if execErr != nil {
		status = contracts.ExecutionFailure
		errorCode = "adapter_error"
		resultMap = map[string]interface{}{"error": "adapter execution failed"}
	} else {
		resultMap = result.AsMap()
		if err := g.Schemas.Validate(capabilityID+":output", manifest.OutputSchema, resultMap); err != nil {
			status = contracts.ExecutionFailure
			errorCode = "output_schema_invalid"
		}
	}

	outputHash, err := redact.HashRedacted(resultMap)
	if err != nil {
		return nil, moaterr.NewInternal(fmt.Errorf("hash output: %w", err))
	}

	// Step 7: build receipt.
	receipt := contracts.NewReceipt(capabilityID, manifest.Version, req.TenantID, req.IdempotencyKey, inputHash, outputHash, latencyMS, status)
	receipt.ErrorCode = errorCode
	receipt.PolicyRiskClass = manifest.RiskClass
	receipt.Result = resultMap
	if result != nil {
		receipt.ProviderRequestID = result.ProviderRequestID
	}

	// Step 8: schedule background work (no wait).
	g.background.submit(func(bgCtx context.Context) {
		g.emitOutcome(bgCtx, receipt)
		if _, hookErr := g.ReceiptHook.Submit(bgCtx, receipt, manifest.Provider, req.Scope); hookErr != nil {
			g.Logger.Warn("receipt chain hook failed", "error", hookErr, "receipt_id", receipt.ID)
		}
	})

	// Step 9: persist idempotency for successful executions only.
	if status == contracts.ExecutionSuccess && req.IdempotencyKey != "" {
		g.Idempotency.Set(req.TenantID, req.IdempotencyKey, receipt, idempotency.DefaultTTL)
	}

	// Step 10: record spend.
	if status == contracts.ExecutionSuccess && g.Spend != nil {
		if err := g.Spend.RecordSpend(ctx, req.TenantID, capabilityID, SpendPerSuccess); err != nil {
			g.Logger.Warn("spend recording failed", "error", err)
		}
	}

	return receipt, nil
}

func (g *Gateway) spendOrZero(ctx context.Context, tenantID, capabilityID string) (int64, error) {
	if g.Spend == nil {
		return 0, nil
	}
	return g.Spend.CurrentDailySpend(ctx, tenantID, capabilityID)
}

func (g *Gateway) emitOutcome(ctx context.Context, receipt *contracts.Receipt) {
	success := receipt.Status == contracts.ExecutionSuccess
	var taxonomy contracts.ErrorTaxonomy
	if !success {
		taxonomy = contracts.ErrorUnknown
	}
	event, err := contracts.NewOutcomeEvent(receipt.ID, receipt.CapabilityID, receipt.TenantID, success, receipt.LatencyMS, taxonomy)
	if err != nil {
		g.Logger.Warn("outcome event construction failed", "error", err)
		return
	}
	g.Trust.Record(event)
}
