/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agenttrace records one agent run as an OpenTelemetry span tree and a
structured Trace value.

# Overview

  - RunContext: run-level metadata (repository, branch, issue, session) attached to spans and metrics
  - Trace: one run from the seed task to the final stop reason
  - ToolCall: a single tool invocation within a run
  - Tracer: receives completed traces

# Usage

Attach run metadata and a tracer to the context:

	ctx = agenttrace.WithRunContext(ctx, agenttrace.RunContext{
		Repository: "redgold-io/redgold",
		Branch:     "ai/fix-42",
		Issue:      42,
	})
	ctx = agenttrace.WithTracer(ctx, agenttrace.ByCode(func(tr *agenttrace.Trace) {
		log.Printf("run %s finished: %s", tr.ID, tr.Result)
	}))

Record a run:

	tr := agenttrace.StartTrace(ctx, "fix bug #42")
	tc := tr.StartToolCall("toolu_01", "read_file", map[string]any{"filename": "src/lib.rs"})
	tc.Complete("1: fn main() {}", nil)
	tr.RecordTokenUsage("claude-sonnet-4-5", 1200, 80)
	tr.Complete("end_turn", nil)

Without a tracer in the context, completed traces are logged through clog.
*/
package agenttrace
