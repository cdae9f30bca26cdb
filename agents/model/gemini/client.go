/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/toolcall"
	"github.com/chainguard-dev/clog"
	"github.com/oklog/ulid/v2"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gemini-2.5-pro"

// Option is a functional option for configuring the client.
type Option func(*Client) error

// WithModel sets the model to use for generation.
func WithModel(name string) Option {
	return func(c *Client) error {
		if !strings.HasPrefix(name, "gemini-") {
			return fmt.Errorf("model %q does not appear to be a Gemini model (expected gemini-* format)", name)
		}
		c.model = name
		return nil
	}
}

// Client is a model.Client backed by genai.Client.
type Client struct {
	client *genai.Client
	model  string
}

var _ model.Client = (*Client)(nil)

// New creates a client with the given options applied.
func New(client *genai.Client, opts ...Option) (*Client, error) {
	if client == nil {
		return nil, errors.New("genai client cannot be nil")
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

	contents, err := buildContents(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(settings, req.Tools)

	response, err := c.client.Models.GenerateContent(ctx, settings.Model, contents, config)
	if err != nil {
		return nil, classify(err)
	}
	usage := usageOf(response)

	if len(response.Candidates) > 0 && response.Candidates[0].FinishReason == genai.FinishReasonMalformedFunctionCall {
		var names []string
		for _, def := range req.Tools {
			names = append(names, def.Name)
		}
		clog.FromContext(ctx).With("finish_message", response.Candidates[0].FinishMessage).
			Warn("Model attempted a malformed function call, asking it to retry")

		contents = append(contents, &genai.Content{
			Role: "user",
			Parts: []*genai.Part{{
				Text: fmt.Sprintf("The function call was malformed. Please try again using the available functions: %v", names),
			}},
		})
		response, err = c.client.Models.GenerateContent(ctx, settings.Model, contents, config)
		if err != nil {
			return nil, classify(err)
		}
		usage = usage.Add(usageOf(response))
	}

	out, err := fromResponse(response)
	if err != nil {
		return nil, err
	}
	out.Usage = usage
	out.Model = settings.Model
	return out, nil
}

func buildConfig(settings model.RunSettings, tools []toolcall.Definition) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     ptr(float32(settings.Temperature)),
		MaxOutputTokens: int32(settings.MaxTokens),
	}
	if settings.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: settings.System}},
		}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, def := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 def.Name,
				Description:          def.Description,
				ParametersJsonSchema: def.InputSchema,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

func buildContents(history []conversation.Message) ([]*genai.Content, error) {
	// Tool results carry only the call ID; Gemini also wants the function name.
	names := map[string]string{}
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == conversation.RoleAssistant {
			role = "model"
		}
		content := &genai.Content{Role: role}
		for _, b := range m.Content {
			switch b.Type {
			case conversation.BlockText:
				content.Parts = append(content.Parts, &genai.Part{Text: b.Text})
			case conversation.BlockToolUse:
				names[b.ID] = b.Name
				args := b.InputMap()
				if args == nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: b.ID, Name: b.Name, Args: args},
				})
			case conversation.BlockToolResult:
				name, ok := names[b.ToolUseID]
				if !ok {
					return nil, fmt.Errorf("tool result %q has no matching function call", b.ToolUseID)
				}
				key := "output"
				if b.IsError {
					key = "error"
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       b.ToolUseID,
						Name:     name,
						Response: map[string]any{key: b.Content},
					},
				})
			default:
				return nil, fmt.Errorf("unsupported block type %q", b.Type)
			}
		}
		contents = append(contents, content)
	}
	return contents, nil
}

func fromResponse(response *genai.GenerateContentResponse) (*model.Response, error) {
	if response == nil || len(response.Candidates) == 0 {
		return nil, errors.New("no content generated - no candidates")
	}
	candidate := response.Candidates[0]

	out := conversation.Message{Role: conversation.RoleAssistant}
	hasCalls := false
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Thought:
				// Reasoning is not replayed to the model.
			case part.FunctionCall != nil:
				hasCalls = true
				id := part.FunctionCall.ID
				if id == "" {
					id = "call_" + ulid.Make().String()
				}
				input, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, fmt.Errorf("marshaling function call args: %w", err)
				}
				out.Content = append(out.Content, conversation.ToolUseBlock(id, part.FunctionCall.Name, input))
			case part.Text != "":
				out.Content = append(out.Content, conversation.TextBlock(part.Text))
			}
		}
	}

	return &model.Response{
		Message:    out,
		StopReason: stopReason(candidate.FinishReason, hasCalls),
	}, nil
}

func stopReason(finish genai.FinishReason, hasCalls bool) conversation.StopReason {
	switch {
	case hasCalls:
		return conversation.StopToolUse
	case finish == genai.FinishReasonMaxTokens:
		return conversation.StopMaxTokens
	default:
		return conversation.StopEndTurn
	}
}

func usageOf(response *genai.GenerateContentResponse) model.Usage {
	if response == nil || response.UsageMetadata == nil {
		return model.Usage{}
	}
	return model.Usage{
		InputTokens:  int64(response.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(response.UsageMetadata.CandidatesTokenCount),
	}
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && model.StatusRateLimited(apiErr.Code) {
		return model.RateLimited(err)
	}
	// Vertex sometimes reports quota exhaustion only in the message.
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return model.RateLimited(err)
	}
	return err
}

func ptr[T any](v T) *T {
	return &v
}
