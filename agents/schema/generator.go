/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Generator wraps jsonschema.Reflector with the defaults used for tool input schemas.
type Generator struct {
	reflector jsonschema.Reflector
}

// NewGenerator constructs a generator. Required properties come only from
// `jsonschema:"required"` tags so optional tool arguments stay optional.
func NewGenerator() *Generator {
	return &Generator{
		reflector: jsonschema.Reflector{
			RequiredFromJSONSchemaTags: true,
			ExpandedStruct:             true,
			AllowAdditionalProperties:  true,
			DoNotReference:             true,
			Anonymous:                  true,
		},
	}
}

// Reflect returns the JSON schema for the provided value.
func (g *Generator) Reflect(v any) *jsonschema.Schema {
	return g.reflector.Reflect(v)
}

// Reflect derives the JSON schema for the provided value using a default generator.
func Reflect(v any) *jsonschema.Schema {
	return NewGenerator().Reflect(v)
}

// ReflectType allocates a zero value of T and reflects it to a schema.
func ReflectType[T any]() *jsonschema.Schema {
	var zero T
	return Reflect(&zero)
}

// Object reflects T into the generic map form that model providers accept as
// a tool input schema. The result always has "type": "object" and a
// "properties" map, even for argument-less tools.
func Object[T any]() (map[string]any, error) {
	rt := reflect.TypeFor[T]()
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() == reflect.Struct {
		switch {
		case rt.NumField() == 0:
			return map[string]any{"type": "object", "properties": map[string]any{}}, nil
		case rt.Name() == "":
			return nil, fmt.Errorf("tool input %v must be a named struct type", rt)
		}
	}
	raw, err := json.Marshal(ReflectType[T]())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	if t, ok := out["type"]; ok && t != "object" {
		return nil, fmt.Errorf("tool input must be an object, got %v", t)
	}
	out["type"] = "object"
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out, nil
}

// Required returns the "required" list of an object schema.
func Required(s map[string]any) []string {
	switch v := s["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}
