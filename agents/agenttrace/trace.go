/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chainguard.dev/devloop/agents/agenttrace"

// ToolCall is a single tool invocation within a trace.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	Result    any            `json:"result"`
	Error     error          `json:"error,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	trace     *Trace
	mu        sync.Mutex
	ctx       context.Context
	span      oteltrace.Span
}

// Trace is one agent run from the seed task to its stop reason.
type Trace struct {
	ID           string         `json:"id"`
	Task         string         `json:"task"`
	Run          RunContext     `json:"run,omitempty"`
	ToolCalls    []*ToolCall    `json:"tool_calls"`
	Model        string         `json:"model,omitempty"`
	InputTokens  int64          `json:"input_tokens"`
	OutputTokens int64          `json:"output_tokens"`
	Result       string         `json:"result"`
	Error        error          `json:"error,omitempty"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	tracer       Tracer
	mu           sync.Mutex
	ctx          context.Context
	span         oteltrace.Span
}

func tracer() oteltrace.Tracer {
	return otel.Tracer(instrumentationName, oteltrace.WithInstrumentationVersion("1.0.0"))
}

func newTrace(ctx context.Context, t Tracer, task string) *Trace {
	run := GetRunContext(ctx)
	attrs := append([]attribute.KeyValue{attribute.String("agent.task", task)}, run.Attributes()...)
	ctx, span := tracer().Start(ctx, "agent.run", oteltrace.WithAttributes(attrs...))

	return &Trace{
		ID:        ulid.Make().String(),
		Task:      task,
		Run:       run,
		ToolCalls: []*ToolCall{},
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		tracer:    t,
		ctx:       ctx,
		span:      span,
	}
}

// Context returns a context carrying the run span.
func (t *Trace) Context() context.Context {
	return t.ctx
}

// StartToolCall starts a tool call span under the run span.
func (t *Trace) StartToolCall(id, name string, params map[string]any) *ToolCall {
	ctx, span := tracer().Start(t.ctx, "agent.tool_call", oteltrace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.id", id),
	))
	return &ToolCall{
		ID:        id,
		Name:      name,
		Params:    params,
		StartTime: time.Now(),
		trace:     t,
		ctx:       ctx,
		span:      span,
	}
}

// BadToolCall records a call that never reached a handler, such as an unknown tool.
func (t *Trace) BadToolCall(id, name string, params map[string]any, err error) {
	_, span := tracer().Start(t.ctx, "agent.tool_call", oteltrace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.id", id),
		attribute.String("error", err.Error()),
	))
	span.SetStatus(codes.Error, err.Error())
	span.End()

	now := time.Now()
	tc := &ToolCall{
		ID:        id,
		Name:      name,
		Params:    params,
		StartTime: now,
		EndTime:   now,
		Error:     err,
		trace:     t,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ToolCalls = append(t.ToolCalls, tc)
}

// RecordTokenUsage adds one model call's usage to the running totals and
// mirrors them onto the run span.
func (t *Trace) RecordTokenUsage(model string, inputTokens, outputTokens int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Model = model
	t.InputTokens += inputTokens
	t.OutputTokens += outputTokens
	if t.span != nil {
		t.span.SetAttributes(
			attribute.String("model", model),
			attribute.Int64("tokens.input", t.InputTokens),
			attribute.Int64("tokens.output", t.OutputTokens),
			attribute.Int64("tokens.total", t.InputTokens+t.OutputTokens),
		)
	}
}

// Annotate sets a metadata entry on the trace and the run span.
func (t *Trace) Annotate(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Metadata[key] = value
	if t.span != nil {
		t.span.SetAttributes(attribute.String(key, fmt.Sprint(value)))
	}
}

// Context returns a context carrying the tool call span.
func (tc *ToolCall) Context() context.Context {
	if tc.ctx == nil {
		return tc.trace.ctx
	}
	return tc.ctx
}

// Complete ends the tool call span and attaches the call to its trace.
func (tc *ToolCall) Complete(result any, err error) {
	tc.mu.Lock()
	tc.Result, tc.Error, tc.EndTime = result, err, time.Now()
	tc.mu.Unlock()
	endSpan(tc.span, err)

	tc.trace.mu.Lock()
	defer tc.trace.mu.Unlock()
	tc.trace.ToolCalls = append(tc.trace.ToolCalls, tc)
}

// Duration returns how long the tool call took, or has taken so far.
func (tc *ToolCall) Duration() time.Duration {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return elapsed(tc.StartTime, tc.EndTime)
}

// Complete ends the run span with the run's outcome and hands the trace to
// its tracer.
func (t *Trace) Complete(outcome string, err error) {
	t.mu.Lock()
	t.Result, t.Error, t.EndTime = outcome, err, time.Now()
	t.mu.Unlock()

	if t.span != nil {
		t.span.SetAttributes(attribute.String("agent.outcome", outcome))
	}
	endSpan(t.span, err)
	t.tracer.RecordTrace(t)
}

// Duration returns the total duration of the run.
func (t *Trace) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return elapsed(t.StartTime, t.EndTime)
}

func endSpan(span oteltrace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func elapsed(start, end time.Time) time.Duration {
	if end.IsZero() {
		return time.Since(start)
	}
	return end.Sub(start)
}

// clip shortens s to n bytes and flattens it to one line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// String renders the trace for logs, one line per tool call.
func (t *Trace) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	outcome := t.Result
	if t.Error != nil {
		outcome = "error: " + t.Error.Error()
	}
	fmt.Fprintf(&sb, "trace %s outcome: %s duration: %v\n", t.ID, outcome, elapsed(t.StartTime, t.EndTime).Round(time.Millisecond))
	fmt.Fprintf(&sb, "task: %q\n", clip(t.Task, 200))
	if t.Model != "" {
		fmt.Fprintf(&sb, "model: %s in=%d out=%d\n", t.Model, t.InputTokens, t.OutputTokens)
	}
	if attrs := t.Run.Attributes(); len(attrs) > 0 {
		parts := make([]string, 0, len(attrs))
		for _, a := range attrs {
			parts = append(parts, fmt.Sprintf("%s=%s", a.Key, a.Value.Emit()))
		}
		fmt.Fprintf(&sb, "run: %s\n", strings.Join(parts, " "))
	}

	fmt.Fprintf(&sb, "tool calls: %d\n", len(t.ToolCalls))
	for i, tc := range t.ToolCalls {
		status := "ok: " + clip(fmt.Sprint(tc.Result), 120)
		if tc.Error != nil {
			status = "error: " + clip(tc.Error.Error(), 120)
		}
		fmt.Fprintf(&sb, "  %d. %s [%s] %v %s\n", i+1, tc.Name, tc.ID, elapsed(tc.StartTime, tc.EndTime).Round(time.Millisecond), status)
	}

	if len(t.Metadata) > 0 {
		parts := make([]string, 0, len(t.Metadata))
		for _, k := range slices.Sorted(maps.Keys(t.Metadata)) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, t.Metadata[k]))
		}
		fmt.Fprintf(&sb, "metadata: %s\n", strings.Join(parts, " "))
	}
	return sb.String()
}
