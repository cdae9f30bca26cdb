/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package conversation defines the provider-neutral message model exchanged
// between the conversation driver, the tool dispatcher and model clients.
//
// A Message carries a role and an ordered list of blocks. Blocks are text,
// tool_use (a request from the assistant to run a tool) or tool_result (the
// answer to a tool_use, matched by id). Tool results are always delivered in a
// user message:
//
//	history := []conversation.Message{conversation.UserText("fix bug #42")}
//	// ... model responds with tool_use blocks, dispatcher produces results ...
//	history = append(history, conversation.ToolResults(results))
package conversation
