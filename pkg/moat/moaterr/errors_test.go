package moaterr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeremylongshore/moat/pkg/moat/moaterr"
)

func TestError_Error_PrefersRuleHit(t *testing.T) {
	err := moaterr.NewPolicyDenied("tenant-1", "cap-1", "scope_not_allowed:read")
	assert.Equal(t, "moat: policy_denied: scope_not_allowed:read", err.Error())
}

func TestError_Error_FallsBackToWrappedErr(t *testing.T) {
	err := moaterr.NewAdapterError("cap-1", fmt.Errorf("boom"))
	assert.Equal(t, "moat: adapter_error: boom", err.Error())
}

func TestError_Error_BareKind(t *testing.T) {
	err := &moaterr.Error{Kind: moaterr.KindInternal}
	assert.Equal(t, "moat: internal", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner failure")
	err := moaterr.NewInternal(inner)
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestError_Is_MatchesByKind(t *testing.T) {
	err := moaterr.NewPolicyDenied("tenant-1", "cap-1", "scope_not_allowed:read")
	assert.True(t, errors.Is(err, moaterr.PolicyDenied))
	assert.False(t, errors.Is(err, moaterr.BudgetExceeded))
}

func TestNewBudgetExceeded(t *testing.T) {
	err := moaterr.NewBudgetExceeded("tenant-1", "cap-1", 1000, 500)
	assert.Equal(t, moaterr.KindBudgetExceeded, err.Kind)
	assert.Equal(t, int64(500), err.BudgetCents)
	assert.Equal(t, "daily", err.Period)
	assert.True(t, errors.Is(err, moaterr.BudgetExceeded))
}

func TestNewCapabilityNotFound(t *testing.T) {
	err := moaterr.NewCapabilityNotFound("cap-1")
	assert.Equal(t, moaterr.KindCapabilityNotFound, err.Kind)
	assert.Equal(t, "cap-1", err.CapabilityID)
}

func TestNewSchemaInvalid(t *testing.T) {
	inner := fmt.Errorf("missing required field")
	err := moaterr.NewSchemaInvalid("cap-1", inner)
	assert.Equal(t, moaterr.KindSchemaInvalid, err.Kind)
	assert.Equal(t, "cap-1", err.CapabilityID)
	assert.True(t, errors.Is(err, moaterr.SchemaInvalid))
	assert.ErrorIs(t, err, inner)
}
