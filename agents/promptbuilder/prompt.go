/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// stringLiteral only accepts untyped string constants from callers outside
// this package.
type stringLiteral string

// valueFunc produces the text substituted for a placeholder. A nil valueFunc
// marks an unbound placeholder.
type valueFunc func() (string, error)

// Prompt is an immutable template together with its bindings.
type Prompt struct {
	template string
	values   map[string]valueFunc
}

// NewPrompt parses template and records its placeholders as unbound.
func NewPrompt(template stringLiteral) (*Prompt, error) {
	values := make(map[string]valueFunc)
	if _, err := walkTemplate(string(template), func(name string) (string, error) {
		values[name] = nil
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: string(template), values: values}, nil
}

// MustNewPrompt is NewPrompt for package-level templates; it panics on error.
func MustNewPrompt(template stringLiteral) *Prompt {
	return Must(NewPrompt(template))
}

// Must panics if err is non-nil.
func Must(p *Prompt, err error) *Prompt {
	if err != nil {
		panic(err)
	}
	return p
}

// Placeholders returns the template's placeholder names, sorted.
func (p *Prompt) Placeholders() []string {
	return slices.Sorted(maps.Keys(p.values))
}

// Unbound returns the names that still need a value, sorted.
func (p *Prompt) Unbound() []string {
	var out []string
	for _, name := range p.Placeholders() {
		if p.values[name] == nil {
			out = append(out, name)
		}
	}
	return out
}

func (p *Prompt) bind(name string, fn valueFunc) (*Prompt, error) {
	current, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if current != nil {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	values := maps.Clone(p.values)
	values[name] = fn
	return &Prompt{template: p.template, values: values}, nil
}

// BindStringLiteral binds a developer-controlled constant.
func (p *Prompt) BindStringLiteral(name string, value stringLiteral) (*Prompt, error) {
	return p.bind(name, func() (string, error) { return string(value), nil })
}

// BindJSON binds data marshaled as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling %s as JSON: %w", name, err)
		}
		return string(b), nil
	})
}

// BindYAML binds data marshaled as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("marshaling %s as YAML: %w", name, err)
		}
		return strings.TrimSuffix(string(b), "\n"), nil
	})
}

// BindXML binds data marshaled as indented XML.
func (p *Prompt) BindXML(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := xml.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling %s as XML: %w", name, err)
		}
		return string(b), nil
	})
}

// BindFenced binds free text inside a fenced code block whose fence is longer
// than any run of backticks in text, so the text cannot close it early.
func (p *Prompt) BindFenced(name, text string) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		fence := strings.Repeat("`", max(3, longestRun(text, '`')+1))
		return fence + "\n" + strings.TrimSuffix(text, "\n") + "\n" + fence, nil
	})
}

// MustBindStringLiteral is BindStringLiteral that panics on error.
func (p *Prompt) MustBindStringLiteral(name string, value stringLiteral) *Prompt {
	return Must(p.BindStringLiteral(name, value))
}

// MustBindJSON is BindJSON that panics on error.
func (p *Prompt) MustBindJSON(name string, data any) *Prompt {
	return Must(p.BindJSON(name, data))
}

// MustBindYAML is BindYAML that panics on error.
func (p *Prompt) MustBindYAML(name string, data any) *Prompt {
	return Must(p.BindYAML(name, data))
}

// MustBindXML is BindXML that panics on error.
func (p *Prompt) MustBindXML(name string, data any) *Prompt {
	return Must(p.BindXML(name, data))
}

// MustBindFenced is BindFenced that panics on error.
func (p *Prompt) MustBindFenced(name, text string) *Prompt {
	return Must(p.BindFenced(name, text))
}

// Build renders the template. Every placeholder must be bound.
func (p *Prompt) Build() (string, error) {
	if unbound := p.Unbound(); len(unbound) > 0 {
		return "", fmt.Errorf("unbound placeholders: %s", strings.Join(unbound, ", "))
	}
	rendered := make(map[string]string, len(p.values))
	for name, fn := range p.values {
		v, err := fn()
		if err != nil {
			return "", err
		}
		rendered[name] = v
	}
	return walkTemplate(p.template, func(name string) (string, error) {
		return rendered[name], nil
	})
}

func longestRun(s string, c rune) int {
	best, cur := 0, 0
	for _, r := range s {
		if r == c {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}
