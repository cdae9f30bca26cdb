/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Tracer creates traces and receives them once complete.
type Tracer interface {
	NewTrace(ctx context.Context, task string) *Trace
	RecordTrace(trace *Trace)
}

type tracerKey struct{}

// WithTracer returns a new context carrying tracer.
func WithTracer(ctx context.Context, tracer Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tracer)
}

// TracerFromContext returns the context's tracer, or a default clog tracer.
func TracerFromContext(ctx context.Context) Tracer {
	if tracer, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return tracer
	}
	return NewDefaultTracer(ctx)
}

// StartTrace starts a trace with the context's tracer.
func StartTrace(ctx context.Context, task string) *Trace {
	return TracerFromContext(ctx).NewTrace(ctx, task)
}

// TraceCallback receives completed traces.
type TraceCallback func(*Trace)

type byCodeTracer struct {
	callbacks []TraceCallback
}

// ByCode returns a Tracer that hands each completed trace to callbacks, run in parallel.
func ByCode(callbacks ...TraceCallback) Tracer {
	return &byCodeTracer{callbacks: callbacks}
}

func (t *byCodeTracer) NewTrace(ctx context.Context, task string) *Trace {
	return newTrace(ctx, t, task)
}

func (t *byCodeTracer) RecordTrace(trace *Trace) {
	g := new(errgroup.Group)
	for _, callback := range t.callbacks {
		if callback != nil {
			g.Go(func() error {
				callback(trace)
				return nil
			})
		}
	}
	_ = g.Wait()
}

// NewDefaultTracer returns a tracer that logs completed traces to clog.
func NewDefaultTracer(ctx context.Context) Tracer {
	logger := clog.FromContext(ctx)
	return ByCode(func(trace *Trace) {
		logger.With(
			"trace_id", trace.ID,
			"duration_ms", trace.Duration().Milliseconds(),
			"tool_calls", len(trace.ToolCalls),
		).Info("Agent trace completed", "trace", trace.String())
	})
}
