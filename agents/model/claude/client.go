/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/toolcall"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "claude-sonnet-4-5"

// Client is a model.Client backed by anthropic.Client.
type Client struct {
	client anthropic.Client
	model  string
}

var _ model.Client = (*Client)(nil)

// New creates a client with the given options applied.
func New(client anthropic.Client, opts ...Option) (*Client, error) {
	c := &Client{
		client: client,
		model:  DefaultModel,
	}
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

	params, err := buildParams(settings, req.Messages, req.Tools)
	if err != nil {
		return nil, err
	}

	msg, err := c.stream(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	clog.FromContext(ctx).With("model", string(msg.Model)).
		With("stop_reason", string(msg.StopReason)).
		Debug("Claude response received")
	return fromMessage(msg), nil
}

// stream sends params as a streaming request and accumulates the events into
// one message.
func (c *Client) stream(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var msg anthropic.Message
	for stream.Next() {
		if err := msg.Accumulate(stream.Current()); err != nil {
			return nil, fmt.Errorf("accumulating stream event: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func buildParams(settings model.RunSettings, history []conversation.Message, tools []toolcall.Definition) (anthropic.MessageNewParams, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		p, err := toParam(m)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		messages = append(messages, p)
	}

	toolDefs := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		toolDefs = append(toolDefs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: def.Properties(),
					Required:   def.Required(),
				},
			},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(settings.Model),
		MaxTokens:   settings.MaxTokens,
		Messages:    messages,
		Tools:       toolDefs,
		Temperature: anthropic.Float(settings.Temperature),
	}
	if settings.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: settings.System}}
	}
	return params, nil
}

func toParam(m conversation.Message) (anthropic.MessageParam, error) {
	role := anthropic.MessageParamRoleUser
	if m.Role == conversation.RoleAssistant {
		role = anthropic.MessageParamRoleAssistant
	}

	content := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
	for _, b := range m.Content {
		switch b.Type {
		case conversation.BlockText:
			content = append(content, anthropic.NewTextBlock(b.Text))
		case conversation.BlockToolUse:
			input := b.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			content = append(content, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    b.ID,
					Name:  b.Name,
					Input: input,
				},
			})
		case conversation.BlockToolResult:
			content = append(content, anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: b.ToolUseID,
					IsError:   anthropic.Bool(b.IsError),
					Content: []anthropic.ToolResultBlockParamContentUnion{{
						OfText: &anthropic.TextBlockParam{Text: b.Content},
					}},
				},
			})
		default:
			return anthropic.MessageParam{}, fmt.Errorf("unsupported block type %q", b.Type)
		}
	}
	return anthropic.MessageParam{Role: role, Content: content}, nil
}

func fromMessage(msg *anthropic.Message) *model.Response {
	out := conversation.Message{Role: conversation.RoleAssistant}
	for _, content := range msg.Content {
		switch content.Type {
		case "text":
			out.Content = append(out.Content, conversation.TextBlock(content.Text))
		case "tool_use":
			out.Content = append(out.Content, conversation.ToolUseBlock(content.ID, content.Name, content.Input))
		}
	}
	return &model.Response{
		Message:    out,
		StopReason: conversation.StopReason(msg.StopReason),
		Usage: model.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
		Model: string(msg.Model),
	}
}

// classify wraps rate-limit-class API errors with model.ErrRateLimited.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && model.StatusRateLimited(apiErr.StatusCode) {
		return model.RateLimited(err)
	}
	return err
}
