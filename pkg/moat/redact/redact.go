// Package redact scrubs secrets from request/response data before hashing
// or logging, and produces deterministic SHA-256 hashes of the redacted,
// canonically-ordered JSON (spec §4.1).
//
// Hashing is delegated to pkg/canonicalize's RFC 8785 canonicalizer so
// key order never affects the digest.
package redact

import (
	"strings"

	"github.com/jeremylongshore/moat/pkg/canonicalize"
)

// Keys is the built-in sensitive-key set (case-insensitive). Never
// subtractable — callers may only union additional keys via the denylist
// argument of Body and HashRedacted.
var Keys = map[string]struct{}{
	"authorization":  {},
	"api_key":        {},
	"api-key":        {},
	"token":          {},
	"password":       {},
	"secret":         {},
	"credential":     {},
	"credentials":    {},
	"access_token":   {},
	"refresh_token":  {},
	"client_secret":  {},
	"private_key":    {},
	"x-api-key":      {},
	"x_api_key":      {},
	"bearer":         {},
	"session_token":  {},
	"signing_key":    {},
}

const sentinel = "[REDACTED]"

func isSensitive(key string, extra map[string]struct{}) bool {
	lower := strings.ToLower(key)
	if _, ok := Keys[lower]; ok {
		return true
	}
	if extra != nil {
		if _, ok := extra[lower]; ok {
			return true
		}
	}
	return false
}

func toExtraSet(denylist []string) map[string]struct{} {
	if len(denylist) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(denylist))
	for _, k := range denylist {
		out[strings.ToLower(k)] = struct{}{}
	}
	return out
}

// Headers returns a copy of headers with sensitive values replaced by
// "[REDACTED]". Non-recursive: header maps are flat by construction.
func Headers(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSensitive(k, nil) {
			out[k] = sentinel
		} else {
			out[k] = v
		}
	}
	return out
}

// Body recursively redacts sensitive keys in a nested value (maps, slices,
// scalars). denylist, if non-nil, is unioned with the built-in Keys set.
func Body(value interface{}, denylist ...string) interface{} {
	return redactRecursive(value, toExtraSet(denylist))
}

func redactRecursive(v interface{}, extra map[string]struct{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if isSensitive(k, extra) {
				out[k] = sentinel
			} else {
				out[k] = redactRecursive(val, extra)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = redactRecursive(item, extra)
		}
		return out
	default:
		return v
	}
}

// HashRedacted produces a deterministic SHA-256 hex digest of value after
// redaction, using RFC 8785 canonical JSON so key order never changes the
// digest. If value is a map, Body is applied first; other JSON-serialisable
// values are hashed as-is.
func HashRedacted(value interface{}, denylist ...string) (string, error) {
	if m, ok := value.(map[string]interface{}); ok {
		value = Body(m, denylist...)
	}
	return canonicalize.CanonicalHash(value)
}
