/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNotFound is returned by Lookup for names outside the registry.
var ErrNotFound = errors.New("tool not found")

// Registry maps tool kinds to their handlers. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry builds a registry from handlers. Each kind may appear once.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[Kind]Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			return nil, errors.New("nil tool handler")
		}
		k := h.Kind()
		if !k.Valid() {
			return nil, fmt.Errorf("invalid tool kind %v", k)
		}
		if name := h.Definition().Name; name != k.Name() {
			return nil, fmt.Errorf("tool %s: definition name %q does not match", k.Name(), name)
		}
		if _, dup := r.handlers[k]; dup {
			return nil, fmt.Errorf("tool %s registered twice", k.Name())
		}
		r.handlers[k] = h
	}
	return r, nil
}

// Lookup resolves a wire name to its handler.
func (r *Registry) Lookup(name string) (Handler, error) {
	k, ok := ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	h, ok := r.handlers[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return h, nil
}

// Kinds returns the registered kinds in declaration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Definitions returns the definitions of every registered tool, in kind order.
func (r *Registry) Definitions() []Definition {
	kinds := r.Kinds()
	out := make([]Definition, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, r.handlers[k].Definition())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.handlers)
}
