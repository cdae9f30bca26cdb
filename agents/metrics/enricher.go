/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"

	"chainguard.dev/devloop/agents/agenttrace"
	"go.opentelemetry.io/otel/attribute"
)

// AttributeEnricher receives the base attributes (model, tool) of a metric and
// returns an enriched set.
type AttributeEnricher func(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue

// RunContextEnricher adds the bounded attributes of the run in ctx.
func RunContextEnricher(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	return agenttrace.GetRunContext(ctx).EnrichAttributes(baseAttrs)
}
