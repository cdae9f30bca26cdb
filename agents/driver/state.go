/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package driver

// State is a state of the conversation state machine.
type State int

const (
	// Init is the state before the seed message is added.
	Init State = iota
	// AwaitingModel issues the next model call.
	AwaitingModel
	// DispatchingTools executes the tool calls of the last response.
	DispatchingTools
	// Summarizing compacts the history once it grows past the token threshold.
	Summarizing
	// Done is terminal.
	Done
)

var stateNames = [...]string{
	Init:             "INIT",
	AwaitingModel:    "AWAITING_MODEL",
	DispatchingTools: "DISPATCHING_TOOLS",
	Summarizing:      "SUMMARIZING",
	Done:             "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Observer is called on every state transition.
type Observer func(from, to State)

// Outcome labels how a run ended.
type Outcome string

const (
	OutcomeEndTurn      Outcome = "end_turn"
	OutcomeStopSequence Outcome = "stop_sequence"
	OutcomeMaxTokens    Outcome = "max_tokens"
	OutcomeMaxRuns      Outcome = "max_runs"
	// OutcomeNoToolCalls is a tool_use response that carried no tool_use blocks.
	OutcomeNoToolCalls Outcome = "no_tool_calls"
	// OutcomeUnknownStop is a stop reason the driver does not recognize.
	OutcomeUnknownStop Outcome = "unknown_stop_reason"
	OutcomeError       Outcome = "error"
)
