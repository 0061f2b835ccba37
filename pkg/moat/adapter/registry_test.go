package adapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/adapter"
)

type fakeAdapter struct{ name string }

func (f *fakeAdapter) ProviderName() string { return f.name }
func (f *fakeAdapter) Execute(ctx context.Context, capabilityID, capabilityName string, params map[string]interface{}, credential string) (*adapter.Result, error) {
	return &adapter.Result{StatusCode: 200}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	stub := adapter.NewStubAdapter()
	reg := adapter.NewRegistry(stub)

	fake := &fakeAdapter{name: "acme"}
	reg.Register(fake)

	got, ok := reg.Get("acme")
	require.True(t, ok)
	assert.Same(t, fake, got)
}

func TestRegistry_GetOrStub_FallsBackToStub(t *testing.T) {
	stub := adapter.NewStubAdapter()
	reg := adapter.NewRegistry(stub)

	got := reg.GetOrStub("unregistered")
	assert.Same(t, stub, got)
}

func TestRegistry_GetOrStub_PrefersRegistered(t *testing.T) {
	stub := adapter.NewStubAdapter()
	reg := adapter.NewRegistry(stub)
	fake := &fakeAdapter{name: "acme"}
	reg.Register(fake)

	got := reg.GetOrStub("acme")
	assert.Same(t, fake, got)
}

func TestRegistry_Register_ReplacesExisting(t *testing.T) {
	stub := adapter.NewStubAdapter()
	reg := adapter.NewRegistry(stub)
	first := &fakeAdapter{name: "acme"}
	second := &fakeAdapter{name: "acme"}
	reg.Register(first)
	reg.Register(second)

	got, _ := reg.Get("acme")
	assert.Same(t, second, got)
}

func TestResult_AsMap_NilSafe(t *testing.T) {
	var r *adapter.Result
	m := r.AsMap()
	assert.Empty(t, m)
}

func TestResult_AsMap(t *testing.T) {
	r := &adapter.Result{StatusCode: 200, ContentType: "application/json", Body: map[string]interface{}{"ok": true}}
	m := r.AsMap()
	assert.Equal(t, 200, m["status_code"])
	assert.Equal(t, "application/json", m["content_type"])
}

func TestStubAdapter_Execute(t *testing.T) {
	s := adapter.NewStubAdapter()
	res, err := s.Execute(context.Background(), "cap-1", "do-thing", map[string]interface{}{"x": 1}, "cred")
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	body, ok := res.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cap-1", body["capability_id"])
	assert.Equal(t, true, body["stub"])
}

func TestStubAdapter_Execute_ContextCanceled(t *testing.T) {
	s := adapter.NewStubAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Execute(ctx, "cap-1", "do-thing", nil, "")
	assert.Error(t, err)
}
