package capcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/capcache"
	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

func manifestFixture(id, name string) *contracts.CapabilityManifest {
	now := time.Now().UTC()
	return &contracts.CapabilityManifest{
		ID: id, Name: name, Version: "1.0.0", Status: contracts.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestCache_Get_ByID(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	reg.Put(manifestFixture("cap-1", "do-thing"))
	c := capcache.New(reg)

	m, err := c.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, "cap-1", m.ID)
}

func TestCache_Get_FallsBackToByNameScan(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	reg.Put(manifestFixture("cap-1", "do-thing"))
	c := capcache.New(reg)

	m, err := c.Get(context.Background(), "do-thing")
	require.NoError(t, err)
	assert.Equal(t, "cap-1", m.ID)
}

func TestCache_Get_NotFound(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	c := capcache.New(reg)

	_, err := c.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCache_Get_UnreachableFallsBackToStub(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	reg.SetUnreachable(true)
	c := capcache.New(reg)

	m, err := c.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.True(t, m.Stub)
	assert.Equal(t, "cap-1", m.ID)
}

func TestCache_Get_UnreachableWithDisableStubFails(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	reg.SetUnreachable(true)
	c := capcache.New(reg)
	c.DisableStub = true

	_, err := c.Get(context.Background(), "cap-1")
	assert.Error(t, err)
}

func TestCache_Get_CachesWithinTTL(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	reg.Put(manifestFixture("cap-1", "do-thing"))
	c := capcache.New(reg)

	_, err := c.Get(context.Background(), "cap-1")
	require.NoError(t, err)

	// Mutate the underlying registry entry; a cached hit must not observe it.
	reg.Put(manifestFixture("cap-1", "renamed"))
	m, err := c.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, "do-thing", m.Name)
}

func TestCache_Invalidate(t *testing.T) {
	reg := capcache.NewMemoryRegistry()
	reg.Put(manifestFixture("cap-1", "do-thing"))
	c := capcache.New(reg)

	_, err := c.Get(context.Background(), "cap-1")
	require.NoError(t, err)

	reg.Put(manifestFixture("cap-1", "renamed"))
	c.Invalidate("cap-1")

	m, err := c.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", m.Name)
}
