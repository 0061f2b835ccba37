package redact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/redact"
)

func TestHeaders_RedactsSensitiveKeys(t *testing.T) {
	out := redact.Headers(map[string]string{
		"Authorization": "Bearer abc123",
		"X-Request-ID":  "req-1",
	})
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "req-1", out["X-Request-ID"])
}

func TestBody_RedactsNestedSensitiveKeys(t *testing.T) {
	in := map[string]interface{}{
		"name": "alice",
		"auth": map[string]interface{}{
			"api_key": "super-secret",
			"scope":   "read",
		},
		"tokens": []interface{}{
			map[string]interface{}{"password": "hunter2", "user": "bob"},
		},
	}

	out := redact.Body(in).(map[string]interface{})
	assert.Equal(t, "alice", out["name"])

	auth := out["auth"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", auth["api_key"])
	assert.Equal(t, "read", auth["scope"])

	tokens := out["tokens"].([]interface{})
	first := tokens[0].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", first["password"])
	assert.Equal(t, "bob", first["user"])
}

func TestBody_WithDenylist(t *testing.T) {
	in := map[string]interface{}{"custom_field": "sensitive-value"}
	out := redact.Body(in, "custom_field").(map[string]interface{})
	assert.Equal(t, "[REDACTED]", out["custom_field"])
}

func TestHashRedacted_DeterministicAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2}
	b := map[string]interface{}{"y": 2, "x": 1}

	ha, err := redact.HashRedacted(a)
	require.NoError(t, err)
	hb, err := redact.HashRedacted(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashRedacted_RedactsBeforeHashing(t *testing.T) {
	withSecret := map[string]interface{}{"token": "abc", "x": 1}
	withoutSecret := map[string]interface{}{"token": "xyz", "x": 1}

	h1, err := redact.HashRedacted(withSecret)
	require.NoError(t, err)
	h2, err := redact.HashRedacted(withoutSecret)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
