// Package moaterr implements the error taxonomy from the gateway's error
// handling design: a single error type with a Kind enum and structured
// fields, rather than a multiple-inheritance exception hierarchy.
package moaterr

import "fmt"

// Kind classifies a Moat error for HTTP status mapping and metrics.
type Kind string

const (
	KindPolicyDenied        Kind = "policy_denied"
	KindBudgetExceeded       Kind = "budget_exceeded"
	KindCapabilityNotFound   Kind = "capability_not_found"
	KindAdapterError         Kind = "adapter_error"
	KindIdempotencyConflict  Kind = "idempotency_conflict"
	KindSchemaInvalid        Kind = "schema_invalid"
	KindInternal             Kind = "internal"
)

// Error is the sole Moat error type. BudgetExceeded is represented as
// Kind == KindBudgetExceeded, a sentinel distinguishable from the generic
// KindPolicyDenied via Is(err, BudgetExceeded) without needing a separate
// Go type that embeds PolicyDenied.
type Error struct {
	Kind         Kind
	RuleHit      string
	CapabilityID string
	TenantID     string
	BudgetCents  int64
	Period       string
	Err          error
}

func (e *Error) Error() string {
	if e.RuleHit != "" {
		return fmt.Sprintf("moat: %s: %s", e.Kind, e.RuleHit)
	}
	if e.Err != nil {
		return fmt.Sprintf("moat: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("moat: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, moaterr.PolicyDenied) style sentinel checks
// by comparing Kind rather than pointer identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels usable with errors.Is.
var (
	PolicyDenied       = &Error{Kind: KindPolicyDenied}
	BudgetExceeded      = &Error{Kind: KindBudgetExceeded}
	CapabilityNotFound  = &Error{Kind: KindCapabilityNotFound}
	AdapterError        = &Error{Kind: KindAdapterError}
	IdempotencyConflict = &Error{Kind: KindIdempotencyConflict}
	SchemaInvalid       = &Error{Kind: KindSchemaInvalid}
	Internal            = &Error{Kind: KindInternal}
)

// NewPolicyDenied builds a policy-denial error carrying the rule_hit token.
func NewPolicyDenied(tenantID, capabilityID, ruleHit string) *Error {
	return &Error{
		Kind:         KindPolicyDenied,
		RuleHit:      ruleHit,
		CapabilityID: capabilityID,
		TenantID:     tenantID,
	}
}

// NewBudgetExceeded builds a budget-exceeded error (a PolicyDenied subclass
// in spec terms, a distinct Kind here).
func NewBudgetExceeded(tenantID, capabilityID string, spend, limit int64) *Error {
	return &Error{
		Kind:         KindBudgetExceeded,
		RuleHit:      fmt.Sprintf("budget_daily_exceeded:spend=%d,limit=%d", spend, limit),
		CapabilityID: capabilityID,
		TenantID:     tenantID,
		BudgetCents:  limit,
		Period:       "daily",
	}
}

// NewCapabilityNotFound builds a capability-not-found error.
func NewCapabilityNotFound(capabilityID string) *Error {
	return &Error{Kind: KindCapabilityNotFound, CapabilityID: capabilityID}
}

// NewSchemaInvalid wraps a CapabilityManifest input/output schema
// validation failure.
func NewSchemaInvalid(capabilityID string, err error) *Error {
	return &Error{Kind: KindSchemaInvalid, CapabilityID: capabilityID, Err: err}
}

// NewAdapterError wraps an adapter failure without leaking internal detail.
func NewAdapterError(capabilityID string, err error) *Error {
	return &Error{Kind: KindAdapterError, CapabilityID: capabilityID, Err: err}
}

// NewInternal wraps an unhandled programming error.
func NewInternal(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}
