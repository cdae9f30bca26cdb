/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openai implements model.Client on the OpenAI Chat Completions API.
//
// Tool results are sent as tool messages immediately after the assistant turn
// that requested them. OpenAI has no error flag on tool messages, so failed
// results carry an "Error: " prefix.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/toolcall"
	"github.com/openai/openai-go"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = openai.ChatModelGPT4o

// Option is a functional option for configuring the client.
type Option func(*Client) error

// WithModel overrides the default model name.
func WithModel(name string) Option {
	return func(c *Client) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("model name cannot be empty")
		}
		c.model = name
		return nil
	}
}

// Client is a model.Client backed by openai.Client.
type Client struct {
	client *openai.Client
	model  string
}

var _ model.Client = (*Client)(nil)

// New creates a client with the given options applied.
func New(client *openai.Client, opts ...Option) (*Client, error) {
	if client == nil {
		return nil, errors.New("openai client cannot be nil")
	}
	c := &Client{client: client, model: DefaultModel}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return c, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	settings := req.Settings.Defaults(c.model)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, buildParams(settings, req.Messages, req.Tools))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned")
	}
	return fromCompletion(resp), nil
}

func buildParams(settings model.RunSettings, history []conversation.Message, tools []toolcall.Definition) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(settings.System, history),
		Model:               settings.Model,
		Temperature:         openai.Float(settings.Temperature),
		MaxCompletionTokens: openai.Int(settings.MaxTokens),
	}
	if len(tools) == 0 {
		return params
	}
	params.Tools = make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, def := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.InputSchema,
			},
		})
	}
	return params
}

func buildMessages(system string, history []conversation.Message) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range history {
		if m.Role == conversation.RoleAssistant {
			messages = append(messages, assistantMessage(m))
			continue
		}
		var text []string
		for _, b := range m.Content {
			switch b.Type {
			case conversation.BlockToolResult:
				content := b.Content
				if b.IsError {
					content = "Error: " + content
				}
				messages = append(messages, openai.ToolMessage(content, b.ToolUseID))
			case conversation.BlockText:
				text = append(text, b.Text)
			}
		}
		if len(text) > 0 {
			messages = append(messages, openai.UserMessage(strings.Join(text, "\n")))
		}
	}
	return messages
}

func assistantMessage(m conversation.Message) openai.ChatCompletionMessageParamUnion {
	uses := m.ToolUses()
	if len(uses) == 0 {
		return openai.AssistantMessage(m.Text())
	}
	calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(uses))
	for _, u := range uses {
		args := string(u.Input)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   u.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      u.Name,
				Arguments: args,
			},
		})
	}
	p := &openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: calls,
	}
	if text := m.Text(); text != "" {
		p.Content.OfString = openai.String(text)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: p}
}

func fromCompletion(resp *openai.ChatCompletion) *model.Response {
	choice := resp.Choices[0]
	out := conversation.Message{Role: conversation.RoleAssistant}
	if choice.Message.Content != "" {
		out.Content = append(out.Content, conversation.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Content = append(out.Content, conversation.ToolUseBlock(tc.ID, tc.Function.Name, []byte(tc.Function.Arguments)))
	}
	return &model.Response{
		Message:    out,
		StopReason: stopReason(choice.FinishReason, len(choice.Message.ToolCalls) > 0),
		Usage: model.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Model: resp.Model,
	}
}

// stopReason maps OpenAI finish reasons onto the conversation stop reasons.
func stopReason(finish string, hasToolCalls bool) conversation.StopReason {
	switch finish {
	case "tool_calls", "function_call":
		return conversation.StopToolUse
	case "length":
		return conversation.StopMaxTokens
	}
	if hasToolCalls {
		return conversation.StopToolUse
	}
	return conversation.StopEndTurn
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && model.StatusRateLimited(apiErr.StatusCode) {
		return model.RateLimited(err)
	}
	return err
}
