/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/model"
	devopenai "chainguard.dev/devloop/agents/model/openai"
	"github.com/google/go-cmp/cmp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func newClient(t *testing.T, handler http.HandlerFunc) *devopenai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	oc := openai.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	c, err := devopenai.New(&oc, devopenai.WithModel("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestCompleteToolCalls(t *testing.T) {
	type wireMessage struct {
		Role       string `json:"role"`
		ToolCallID string `json:"tool_call_id"`
		ToolCalls  []struct {
			ID string `json:"id"`
		} `json:"tool_calls"`
	}
	var body struct {
		Model    string        `json:"model"`
		Messages []wireMessage `json:"messages"`
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "git_add", "arguments": "{\"file_path\":\"src/lib.rs\"}"}}]
			}}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 7, "total_tokens": 57}
		}`)
	})

	history := []conversation.Message{
		conversation.UserText("fix bug #42"),
		{Role: conversation.RoleAssistant, Content: []conversation.Block{
			conversation.TextBlock("reading"),
			conversation.ToolUseBlock("call_0", "read_file", json.RawMessage(`{"filename":"src/lib.rs"}`)),
		}},
		conversation.ToolResults([]conversation.Block{conversation.ToolResult("call_0", "1: fn main() {}", false)}),
	}
	resp, err := c.Complete(context.Background(), model.Request{
		Settings: model.RunSettings{System: "system prompt"},
		Messages: history,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.StopReason != conversation.StopToolUse {
		t.Errorf("stop reason: got = %q, wanted = tool_use", resp.StopReason)
	}
	if diff := cmp.Diff(model.Usage{InputTokens: 50, OutputTokens: 7}, resp.Usage); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
	uses := resp.Message.ToolUses()
	if len(uses) != 1 || uses[0].ID != "call_1" || uses[0].Name != "git_add" {
		t.Fatalf("tool uses: got = %+v", uses)
	}
	if diff := cmp.Diff(map[string]any{"file_path": "src/lib.rs"}, uses[0].InputMap()); diff != "" {
		t.Errorf("input mismatch (-want +got):\n%s", diff)
	}

	if body.Model != "gpt-4o-mini" {
		t.Errorf("request model: got = %q", body.Model)
	}
	var roles []string
	for _, m := range body.Messages {
		roles = append(roles, m.Role)
	}
	if diff := cmp.Diff([]string{"system", "user", "assistant", "tool"}, roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
	if got := body.Messages[2].ToolCalls; len(got) != 1 || got[0].ID != "call_0" {
		t.Errorf("assistant tool calls: got = %+v", got)
	}
	if got := body.Messages[3].ToolCallID; got != "call_0" {
		t.Errorf("tool_call_id: got = %q, wanted = call_0", got)
	}
}

func TestCompleteFinishReasons(t *testing.T) {
	tests := []struct {
		finish string
		want   conversation.StopReason
	}{
		{finish: "stop", want: conversation.StopEndTurn},
		{finish: "length", want: conversation.StopMaxTokens},
		{finish: "content_filter", want: conversation.StopEndTurn},
	}
	for _, tt := range tests {
		t.Run(tt.finish, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"gpt-4o-mini",
					"choices":[{"index":0,"finish_reason":"`+tt.finish+`","message":{"role":"assistant","content":"ok"}}],
					"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
			})
			resp, err := c.Complete(context.Background(), model.Request{
				Messages: []conversation.Message{conversation.UserText("hi")},
			})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.StopReason != tt.want {
				t.Errorf("stop reason: got = %q, wanted = %q", resp.StopReason, tt.want)
			}
			if resp.Message.Text() != "ok" {
				t.Errorf("text: got = %q, wanted = ok", resp.Message.Text())
			}
		})
	}
}

func TestCompleteRateLimit(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	})
	_, err := c.Complete(context.Background(), model.Request{
		Messages: []conversation.Message{conversation.UserText("hi")},
	})
	if !model.IsRateLimited(err) {
		t.Errorf("IsRateLimited: got = false, wanted = true (%v)", err)
	}
}
