/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Definition describes a tool to the model: its name, the description shown
// to the model, and the JSON schema of its input object.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Properties returns the schema's properties map.
func (d Definition) Properties() map[string]any {
	props, _ := d.InputSchema["properties"].(map[string]any)
	if props == nil {
		return map[string]any{}
	}
	return props
}

// Required returns the names of the required input fields.
func (d Definition) Required() []string {
	return schema.Required(d.InputSchema)
}

// Handler executes one kind of tool.
type Handler interface {
	Kind() Kind
	Definition() Definition
	// Execute runs the tool against the raw JSON input the model supplied.
	// Returned errors are reported back to the model, never to the caller
	// of the run.
	Execute(ctx context.Context, input json.RawMessage) (any, error)
}

type typedHandler[In any] struct {
	kind     Kind
	def      Definition
	compiled *jsonschema.Schema
	fn       func(context.Context, In) (any, error)
}

// NoInput is the input of tools that take no arguments.
type NoInput struct{}

var _ Handler = (*typedHandler[NoInput])(nil)

// New builds a Handler whose input is decoded into In. The schema for In is
// reflected from its json and jsonschema struct tags and every input is
// validated against it before fn is called.
func New[In any](kind Kind, description string, fn func(context.Context, In) (any, error)) (Handler, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid tool kind %v", kind)
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: nil handler", kind.Name())
	}
	s, err := schema.Object[In]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", kind.Name(), err)
	}
	compiled, err := compileSchema(s)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema: %w", kind.Name(), err)
	}
	return &typedHandler[In]{
		kind: kind,
		def: Definition{
			Name:        kind.Name(),
			Description: description,
			InputSchema: s,
		},
		compiled: compiled,
		fn:       fn,
	}, nil
}

// MustNew is New for handlers defined at package init; it panics on error.
func MustNew[In any](kind Kind, description string, fn func(context.Context, In) (any, error)) Handler {
	h, err := New(kind, description, fn)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *typedHandler[In]) Kind() Kind { return h.kind }

func (h *typedHandler[In]) Definition() Definition { return h.def }

func (h *typedHandler[In]) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(input)) == 0 || bytes.Equal(bytes.TrimSpace(input), []byte("null")) {
		input = json.RawMessage("{}")
	}
	doc, err := decodeArguments(input)
	if err != nil {
		return nil, fmt.Errorf("invalid tool arguments JSON: %w", err)
	}
	if err := h.compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("tool args schema validation failed: %w", err)
	}
	var in In
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("decoding %s arguments: %w", h.kind.Name(), err)
	}
	return h.fn(ctx, in)
}

// decodeArguments decodes input into the generic form the schema validator
// walks. Numbers stay json.Number so integer checks see the exact literal.
func decodeArguments(input json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after the arguments object")
	}
	return doc, nil
}

func compileSchema(s map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
