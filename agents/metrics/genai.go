/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the meter shared by every model provider; the model name is a
// dimension on the recorded metrics.
const MeterName = "chainguard.dev/devloop"

// GenAI records model token usage and tool calls as otel counters.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	toolCalls        metric.Int64Counter
	enrich           AttributeEnricher
}

// NewGenAI creates the counters on the named meter. Counters that cannot be
// created are replaced by no-ops.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))
	counter := func(name, description, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
		if err != nil {
			clog.FromContext(context.Background()).With("meter", meterName).With("counter", name).With("error", err).
				Warn("Failed to create counter, recording is disabled")
			return noop.Int64Counter{}
		}
		return c
	}
	return &GenAI{
		promptTokens:     counter("genai.token.prompt", "Input tokens sent to the model", "{tokens}"),
		completionTokens: counter("genai.token.completion", "Output tokens generated by the model", "{tokens}"),
		toolCalls:        counter("genai.tool.calls", "Tool calls executed for the model", "{calls}"),
	}
}

// SetAttributeEnricher sets the enricher called before recording each metric.
func (m *GenAI) SetAttributeEnricher(enricher AttributeEnricher) {
	m.enrich = enricher
}

func (m *GenAI) attributes(ctx context.Context, base []attribute.KeyValue, extra []attribute.KeyValue) metric.MeasurementOption {
	if m.enrich != nil {
		base = m.enrich(ctx, base)
	}
	return metric.WithAttributes(append(base, extra...)...)
}

// RecordTokens records the usage of one model call.
func (m *GenAI) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64, attrs ...attribute.KeyValue) {
	opt := m.attributes(ctx, []attribute.KeyValue{attribute.String("model", model)}, attrs)
	m.promptTokens.Add(ctx, promptTokens, opt)
	m.completionTokens.Add(ctx, completionTokens, opt)
}

// RecordToolCall records one tool invocation and whether its result was an
// error.
func (m *GenAI) RecordToolCall(ctx context.Context, model, toolName string, isError bool, attrs ...attribute.KeyValue) {
	m.toolCalls.Add(ctx, 1, m.attributes(ctx, []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("tool", toolName),
		attribute.Bool("error", isError),
	}, attrs))
}
