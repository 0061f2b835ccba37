// Package policy implements the Moat policy engine (spec §4.4):
// default-deny evaluation of a tenant+capability PolicyBundle against a
// request, in a fixed priority order.
//
// Grounded directly on original_source/packages/core/moat_core/policy.py
// for the rule order and exact rule_hit string formats, and on
// pkg/pdp/pdp.go for the Go interface shape.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// Engine evaluates PolicyBundles against requests. The zero value is ready
// to use.
type Engine struct{}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}

// sortedDifference returns sort(a \ b).
func sortedDifference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, x := range b {
		inB[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := inB[x]; !ok {
			out = append(out, x)
		}
	}
	sort.Strings(out)
	return out
}

// Evaluate runs the priority-ordered rule chain and always returns a
// PolicyDecision — the engine never returns a bare error for a denial;
// denials are represented as Allowed=false decisions. bundle may be nil
// (no-bundle case). requestID, if empty, is synthesized.
func (e *Engine) Evaluate(
	bundle *contracts.PolicyBundle,
	manifest *contracts.CapabilityManifest,
	scope string,
	currentSpendCents int64,
	requestID string,
) *contracts.PolicyDecision {
	start := time.Now()

	decide := func(allowed bool, ruleHit string) *contracts.PolicyDecision {
		elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)
		bundleID := "__none__"
		tenantID := "__unknown__"
		if bundle != nil {
			bundleID = bundle.ID
			tenantID = bundle.TenantID
		}
		return contracts.NewDecision(bundleID, tenantID, manifest.ID, allowed, ruleHit, elapsedMS, requestID)
	}

	// 1. No bundle.
	if bundle == nil {
		return decide(false, "no_policy_bundle")
	}

	// 2. Scope not allowed.
	if !contains(bundle.AllowedScopes, scope) {
		return decide(false, fmt.Sprintf("scope_not_allowed:%s", scope))
	}

	// 3. Daily budget.
	if bundle.BudgetDaily != nil && currentSpendCents >= *bundle.BudgetDaily {
		return decide(false, fmt.Sprintf("budget_daily_exceeded:spend=%d,limit=%d", currentSpendCents, *bundle.BudgetDaily))
	}

	// 4. Domain allowlist conflict. Empty bundle allowlist means no
	// restriction; manifest.domain_allowlist is irrelevant in that case.
	if len(bundle.DomainAllowlist) > 0 {
		disallowed := sortedDifference(manifest.DomainAllowlist, bundle.DomainAllowlist)
		if len(disallowed) > 0 {
			return decide(false, fmt.Sprintf("domain_allowlist_conflict:disallowed=%v", disallowed))
		}
	}

	// 5. Require approval.
	if bundle.RequireApproval {
		return decide(false, "require_approval")
	}

	// 6. Optional CEL expression rule, an escape hatch beyond the fixed
	// priority chain's exact-match rules (spec §9). Fails closed: a
	// malformed or false-evaluating expression denies.
	if bundle.ExprRule != "" {
		allowed, err := evalExprRule(bundle.ExprRule, scope, manifest.DomainAllowlist, currentSpendCents, string(manifest.RiskClass))
		if err != nil {
			return decide(false, fmt.Sprintf("expr_rule_error:%v", err))
		}
		if !allowed {
			return decide(false, "expr_rule_denied")
		}
	}

	// 7. All checks passed.
	return decide(true, "all_checks_passed")
}
