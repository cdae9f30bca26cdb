/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// RunContext describes the run an agent trace belongs to.
type RunContext struct {
	Repository string `json:"repository,omitempty"` // "owner/repo" the workspace tracks
	Branch     string `json:"branch,omitempty"`     // working branch at run start
	Issue      int    `json:"issue,omitempty"`      // GitHub issue seeding the run, if any
	Mode       string `json:"mode,omitempty"`       // "issue" or "unsupervised"
	Session    string `json:"session,omitempty"`    // transcript session directory
}

// Attributes returns span attributes for the non-empty fields.
func (r RunContext) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if r.Repository != "" {
		attrs = append(attrs, attribute.String("repository", r.Repository))
	}
	if r.Branch != "" {
		attrs = append(attrs, attribute.String("branch", r.Branch))
	}
	if r.Issue != 0 {
		attrs = append(attrs, attribute.Int("issue", r.Issue))
	}
	if r.Mode != "" {
		attrs = append(attrs, attribute.String("mode", r.Mode))
	}
	if r.Session != "" {
		attrs = append(attrs, attribute.String("session", r.Session))
	}
	return attrs
}

// EnrichAttributes adds the bounded run attributes to baseAttrs for metrics.
//
// Branch, issue and session are left to traces; each run would otherwise
// create a new time series.
func (r RunContext) EnrichAttributes(baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(baseAttrs), len(baseAttrs)+2)
	copy(attrs, baseAttrs)
	if r.Repository != "" {
		attrs = append(attrs, attribute.String("repository", r.Repository))
	}
	if r.Mode != "" {
		attrs = append(attrs, attribute.String("mode", r.Mode))
	}
	return attrs
}

type runContextKey struct{}

// WithRunContext adds run metadata to the context.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// GetRunContext retrieves run metadata from the context.
func GetRunContext(ctx context.Context) RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(RunContext); ok {
		return rc
	}
	return RunContext{}
}
