/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devloop_model_calls_total",
			Help: "Model calls completed, by stop reason",
		},
		[]string{"stop_reason"},
	)

	ToolResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devloop_tool_results_total",
			Help: "Tool results produced by the dispatcher, by tool and status",
		},
		[]string{"tool", "status"},
	)

	ModelRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devloop_model_retries_total",
			Help: "Model calls retried after a rate-limit-class error",
		},
	)

	Summarizations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devloop_summarizations_total",
			Help: "Times the conversation history was compacted into a summary",
		},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devloop_runs_total",
			Help: "Agent runs finished, by outcome",
		},
		[]string{"outcome"},
	)
)

// ToolStatus is the status label value for a tool result.
func ToolStatus(isError bool) string {
	if isError {
		return "error"
	}
	return "success"
}
