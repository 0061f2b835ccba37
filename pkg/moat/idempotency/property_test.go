//go:build property
// +build property

package idempotency_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/idempotency"
)

// TestReplayReturnsSameReceipt: replaying a (tenant, key) pair that was
// already Set returns the identical receipt on every subsequent Get within
// the TTL window (spec §4.2's replay invariant).
func TestReplayReturnsSameReceipt(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated Get after Set returns the same receipt", prop.ForAll(
		func(tenantID, key, capabilityID string, replays int) bool {
			if tenantID == "" || key == "" {
				return true
			}
			store := idempotency.NewMemoryStore()
			defer store.Close()

			receipt := &contracts.Receipt{ID: "receipt-1", CapabilityID: capabilityID, TenantID: tenantID}
			store.Set(tenantID, key, receipt, time.Hour)

			for i := 0; i < replays%5+1; i++ {
				got, ok := store.Get(tenantID, key)
				if !ok || got.ID != receipt.ID {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
