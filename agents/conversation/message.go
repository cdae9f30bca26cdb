/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package conversation

import (
	"encoding/json"
	"slices"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the content of a Block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// StopReason is why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopSequence  StopReason = "stop_sequence"
	StopToolUse   StopReason = "tool_use"
)

// Terminal reports whether the stop reason ends a run.
func (s StopReason) Terminal() bool {
	switch s {
	case StopEndTurn, StopMaxTokens, StopSequence:
		return true
	default:
		return false
	}
}

// Block is one element of a message's content. Which fields are meaningful
// depends on Type:
//
//   - text: Text
//   - tool_use: ID, Name, Input
//   - tool_result: ToolUseID, IsError, Content
type Block struct {
	Type BlockType `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Message is a single turn in the conversation.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// TextBlock returns a text block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ToolUseBlock returns a tool_use block. A nil input is normalized to an
// empty JSON object.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return Block{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResult returns a tool_result block answering the tool_use with the given id.
func ToolResult(toolUseID, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// UserText wraps text as a single-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock(text)}}
}

// AssistantText wraps text as a single-block assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []Block{TextBlock(text)}}
}

// ToolResults wraps tool_result blocks as one user message. Tool results are
// always delivered as the human turn.
func ToolResults(results []Block) Message {
	return Message{Role: RoleUser, Content: slices.Clone(results)}
}

// ToolUses returns the tool_use blocks of the message in order.
func (m Message) ToolUses() []Block {
	var uses []Block
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{Role: m.Role, Content: make([]Block, len(m.Content))}
	for i, b := range m.Content {
		b.Input = slices.Clone(b.Input)
		out.Content[i] = b
	}
	return out
}

// CloneAll deep copies a history so that callers cannot mutate the original.
func CloneAll(history []Message) []Message {
	out := make([]Message, len(history))
	for i, m := range history {
		out[i] = m.Clone()
	}
	return out
}

// InputMap decodes a tool_use input into a generic map. Invalid or empty
// input yields an empty map.
func (b Block) InputMap() map[string]any {
	out := map[string]any{}
	if len(b.Input) == 0 {
		return out
	}
	if err := json.Unmarshal(b.Input, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
