/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics_test

import (
	"context"
	"testing"

	"chainguard.dev/devloop/agents/agenttrace"
	"chainguard.dev/devloop/agents/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
)

func TestToolResultsCounter(t *testing.T) {
	c := metrics.ToolResults.WithLabelValues("prom_test_tool", metrics.ToolStatus(true))
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("counter: got = %v, wanted = %v", got, before+1)
	}
	if got := metrics.ToolStatus(false); got != "success" {
		t.Errorf("ToolStatus(false): got = %q, wanted = success", got)
	}
}

func TestRunContextEnricher(t *testing.T) {
	ctx := agenttrace.WithRunContext(context.Background(), agenttrace.RunContext{
		Repository: "redgold-io/redgold",
		Branch:     "ai/x",
		Issue:      3,
	})
	got := metrics.RunContextEnricher(ctx, []attribute.KeyValue{attribute.String("model", "m")})
	if len(got) != 2 {
		t.Fatalf("attributes: got = %v, wanted model and repository", got)
	}
	if got[1].Key != "repository" || got[1].Value.AsString() != "redgold-io/redgold" {
		t.Errorf("repository attribute: got = %v", got[1])
	}
}

func TestGenAINoopSafe(t *testing.T) {
	m := metrics.NewGenAI(metrics.MeterName)
	m.SetAttributeEnricher(metrics.RunContextEnricher)
	m.RecordTokens(context.Background(), "claude-sonnet-4-5", 10, 2)
	m.RecordToolCall(context.Background(), "claude-sonnet-4-5", "read_file", false)
}
