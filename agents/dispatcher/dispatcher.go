/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher turns the tool_use blocks of a model response into
// executed tool calls and the tool_result blocks that answer them.
//
// Tool failures never leave the dispatcher. A handler error, a panic, invalid
// arguments or an unknown tool name all become a tool_result with is_error set,
// so the model can correct itself and the run continues.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"chainguard.dev/devloop/agents/agenttrace"
	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/metrics"
	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/toolcall"
	"github.com/chainguard-dev/clog"
)

// DefaultMaxOutputChars bounds the content of a single tool result.
const DefaultMaxOutputChars = 50_000

// Dispatcher executes tool calls against a registry. Calls run one at a time
// in the order the model requested them.
type Dispatcher struct {
	registry       *toolcall.Registry
	genai          *metrics.GenAI
	maxOutputChars int
}

// Option is a functional option for configuring the dispatcher.
type Option func(*Dispatcher) error

// WithMaxOutputChars overrides the result size bound.
func WithMaxOutputChars(n int) Option {
	return func(d *Dispatcher) error {
		if n <= 0 {
			return fmt.Errorf("max output chars must be positive, got %d", n)
		}
		d.maxOutputChars = n
		return nil
	}
}

// WithGenAIMetrics records tool calls on m.
func WithGenAIMetrics(m *metrics.GenAI) Option {
	return func(d *Dispatcher) error {
		if m == nil {
			return errors.New("genai metrics cannot be nil")
		}
		d.genai = m
		return nil
	}
}

// New creates a dispatcher over registry.
func New(registry *toolcall.Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	d := &Dispatcher{
		registry:       registry,
		maxOutputChars: DefaultMaxOutputChars,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return d, nil
}

// Definitions returns the definitions of every registered tool, in kind order.
func (d *Dispatcher) Definitions() []toolcall.Definition {
	return d.registry.Definitions()
}

// Dispatch executes every tool_use block of resp and returns one tool_result
// block per call, in the same order and with matching IDs. Responses whose
// stop reason is not tool_use produce no results and no side effects.
// trace may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, trace *agenttrace.Trace, resp *model.Response) []conversation.Block {
	if resp == nil || resp.StopReason != conversation.StopToolUse {
		return nil
	}
	uses := resp.Message.ToolUses()
	results := make([]conversation.Block, 0, len(uses))
	for _, use := range uses {
		results = append(results, d.invoke(ctx, trace, resp.Model, use))
	}
	return results
}

func (d *Dispatcher) invoke(ctx context.Context, trace *agenttrace.Trace, modelName string, use conversation.Block) conversation.Block {
	log := clog.FromContext(ctx).With("tool", use.Name).With("tool_use_id", use.ID)

	handler, err := d.registry.Lookup(use.Name)
	if err != nil {
		log.Warnf("Unknown tool requested: %v", err)
		if trace != nil {
			trace.BadToolCall(use.ID, use.Name, use.InputMap(), err)
		}
		content := "unknown tool: " + use.Name
		d.record(ctx, modelName, use.Name, true)
		return conversation.ToolResult(use.ID, content, true)
	}

	callCtx := ctx
	var tc *agenttrace.ToolCall
	if trace != nil {
		tc = trace.StartToolCall(use.ID, use.Name, use.InputMap())
		callCtx = clog.WithLogger(tc.Context(), log)
	}

	log.Info("Executing tool call")
	out, err := execute(callCtx, handler, use.Input)

	var content string
	isError := err != nil
	if isError {
		content = err.Error()
		if strings.TrimSpace(content) == "" {
			content = "error"
		}
		log.With("is_error", true).Warnf("Tool call failed: %v", err)
	} else {
		content = Render(out)
		if strings.TrimSpace(content) == "" {
			content = "success"
		}
		log.With("is_error", false).With("output_chars", len(content)).Info("Tool call completed")
	}
	content = Truncate(content, d.maxOutputChars)

	if tc != nil {
		tc.Complete(content, err)
	}
	d.record(ctx, modelName, use.Name, isError)
	return conversation.ToolResult(use.ID, content, isError)
}

func (d *Dispatcher) record(ctx context.Context, modelName, tool string, isError bool) {
	metrics.ToolResults.WithLabelValues(tool, metrics.ToolStatus(isError)).Inc()
	if d.genai != nil {
		d.genai.RecordToolCall(ctx, modelName, tool, isError)
	}
}

// execute runs the handler, converting a panic into an error.
func execute(ctx context.Context, h toolcall.Handler, input json.RawMessage) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			clog.FromContext(ctx).With("stack", string(debug.Stack())).Errorf("Tool handler panicked: %v", r)
			out, err = nil, fmt.Errorf("tool %s panicked: %v", h.Kind().Name(), r)
		}
	}()
	return h.Execute(ctx, input)
}
