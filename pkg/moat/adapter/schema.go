package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator compiles and caches JSON Schemas for capability
// input/output validation (spec §4.9 step 6's pre/post-dispatch check).
// Compiled schemas are cached under the caller-supplied cache key so repeat
// executions of the same capability don't recompile on every call; a
// different schema passed under a key already cached is not recompiled.
type SchemaValidator struct {
	mu     sync.RWMutex
	cached map[string]*jsonschema.Schema
}

// NewSchemaValidator constructs an empty SchemaValidator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{cached: make(map[string]*jsonschema.Schema)}
}

// Validate checks doc against the given JSON Schema document (a
// CapabilityManifest.InputSchema or OutputSchema). A nil or empty schema
// is treated as "no constraint" and always passes, matching
// CapabilityManifest's optional schema fields.
func (v *SchemaValidator) Validate(cacheKey string, schemaDoc map[string]interface{}, doc map[string]interface{}) error {
	if len(schemaDoc) == 0 {
		return nil
	}
	compiled, err := v.compile(cacheKey, schemaDoc)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}
	var instance interface{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("unmarshal instance: %w", err)
	}
	return compiled.Validate(instance)
}

func (v *SchemaValidator) compile(cacheKey string, schemaDoc map[string]interface{}) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if s, ok := v.cached[cacheKey]; ok {
		v.mu.RUnlock()
		return s, nil
	}
	v.mu.RUnlock()

	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	resourceName := cacheKey + ".json"
	if err := c.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cached[cacheKey] = compiled
	v.mu.Unlock()
	return compiled, nil
}
