/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/model/claude"
	"chainguard.dev/devloop/agents/toolcall"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/go-cmp/cmp"
)

// toolUseStream is the event stream of a response that reads a file.
var toolUseStream = []string{
	`{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":120,"output_tokens":1}}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me look "}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"at the file."}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"read_file","input":{}}}`,
	`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"filename\":"}}`,
	`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":" \"src/lib.rs\"}"}}`,
	`{"type":"content_block_stop","index":1}`,
	`{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":30}}`,
	`{"type":"message_stop"}`,
}

// endTurnStream is the event stream of a one-line text answer.
var endTurnStream = []string{
	`{"type":"message_start","message":{"id":"msg_02","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":1}}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"done"}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":1}}`,
	`{"type":"message_stop"}`,
}

// writeStream writes events as a server-sent event stream, naming each
// event by its type field.
func writeStream(t *testing.T, w http.ResponseWriter, events []string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	for _, data := range events {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(data), &head); err != nil {
			t.Errorf("bad event %s: %v", data, err)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, data)
	}
}

func newClient(t *testing.T, handler http.HandlerFunc) *claude.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := claude.New(anthropic.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func readDef(t *testing.T) toolcall.Definition {
	t.Helper()
	type input struct {
		Filename string `json:"filename" jsonschema:"required"`
	}
	return toolcall.MustNew(toolcall.ReadFile, "Read a file", func(context.Context, input) (any, error) {
		return nil, nil
	}).Definition()
}

func TestCompleteToolUse(t *testing.T) {
	var body map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body: %v", err)
		}
		writeStream(t, w, toolUseStream)
	})

	resp, err := c.Complete(context.Background(), model.Request{
		Settings: model.RunSettings{System: "be terse", MaxTokens: 1024},
		Messages: []conversation.Message{conversation.UserText("fix bug #42")},
		Tools:    []toolcall.Definition{readDef(t)},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.StopReason != conversation.StopToolUse {
		t.Errorf("stop reason: got = %q, wanted = %q", resp.StopReason, conversation.StopToolUse)
	}
	if diff := cmp.Diff(model.Usage{InputTokens: 120, OutputTokens: 30}, resp.Usage); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
	if resp.Message.Role != conversation.RoleAssistant {
		t.Errorf("role: got = %q, wanted = assistant", resp.Message.Role)
	}
	uses := resp.Message.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("tool uses: got = %d, wanted = 1", len(uses))
	}
	if uses[0].ID != "toolu_01" || uses[0].Name != "read_file" {
		t.Errorf("tool use: got = %s/%s, wanted = toolu_01/read_file", uses[0].ID, uses[0].Name)
	}
	if diff := cmp.Diff(map[string]any{"filename": "src/lib.rs"}, uses[0].InputMap()); diff != "" {
		t.Errorf("input mismatch (-want +got):\n%s", diff)
	}
	if got := resp.Message.Text(); got != "Let me look at the file." {
		t.Errorf("text: got = %q", got)
	}

	if body["model"] != claude.DefaultModel {
		t.Errorf("request model: got = %v, wanted = %v", body["model"], claude.DefaultModel)
	}
	if body["stream"] != true {
		t.Errorf("request stream: got = %v, wanted = true", body["stream"])
	}
	if body["max_tokens"] != float64(1024) {
		t.Errorf("request max_tokens: got = %v, wanted = 1024", body["max_tokens"])
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("request tools: got = %v", body["tools"])
	}
	if name := tools[0].(map[string]any)["name"]; name != "read_file" {
		t.Errorf("request tool name: got = %v, wanted = read_file", name)
	}
	system, _ := body["system"].([]any)
	if len(system) != 1 || system[0].(map[string]any)["text"] != "be terse" {
		t.Errorf("request system: got = %v", body["system"])
	}
}

func TestCompleteSendsToolResults(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string           `json:"role"`
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body: %v", err)
		}
		writeStream(t, w, endTurnStream)
	})

	history := []conversation.Message{
		conversation.UserText("fix bug #42"),
		{Role: conversation.RoleAssistant, Content: []conversation.Block{
			conversation.ToolUseBlock("toolu_01", "read_file", json.RawMessage(`{"filename":"src/lib.rs"}`)),
		}},
		conversation.ToolResults([]conversation.Block{conversation.ToolResult("toolu_01", "no such file", true)}),
	}
	resp, err := c.Complete(context.Background(), model.Request{Messages: history})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.StopReason != conversation.StopEndTurn {
		t.Errorf("stop reason: got = %q, wanted = end_turn", resp.StopReason)
	}

	if len(body.Messages) != 3 {
		t.Fatalf("messages: got = %d, wanted = 3", len(body.Messages))
	}
	if body.Messages[1].Role != "assistant" || body.Messages[1].Content[0]["type"] != "tool_use" {
		t.Errorf("assistant turn: got = %+v", body.Messages[1])
	}
	result := body.Messages[2].Content[0]
	if body.Messages[2].Role != "user" || result["type"] != "tool_result" {
		t.Fatalf("result turn: got = %+v", body.Messages[2])
	}
	if result["tool_use_id"] != "toolu_01" || result["is_error"] != true {
		t.Errorf("tool result: got = %v", result)
	}
}

func TestCompleteLargeMaxTokens(t *testing.T) {
	var hits int
	var body map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body: %v", err)
		}
		writeStream(t, w, endTurnStream)
	})

	resp, err := c.Complete(context.Background(), model.Request{
		Settings: model.RunSettings{MaxTokens: 64000},
		Messages: []conversation.Message{conversation.UserText("fix bug #42")},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if hits != 1 {
		t.Errorf("requests: got = %d, wanted = 1", hits)
	}
	if body["max_tokens"] != float64(64000) {
		t.Errorf("request max_tokens: got = %v, wanted = 64000", body["max_tokens"])
	}
	if got := resp.Message.Text(); got != "done" {
		t.Errorf("text: got = %q, wanted = done", got)
	}
}

func TestCompleteRateLimit(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "429 rate limit", status: http.StatusTooManyRequests, want: true},
		{name: "529 overloaded", status: 529, want: true},
		{name: "400 bad request", status: http.StatusBadRequest, want: false},
		{name: "401 unauthorized", status: http.StatusUnauthorized, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
			})
			_, err := c.Complete(context.Background(), model.Request{
				Messages: []conversation.Message{conversation.UserText("hi")},
			})
			if err == nil {
				t.Fatal("Complete() error = nil")
			}
			if got := model.IsRateLimited(err); got != tt.want {
				t.Errorf("IsRateLimited: got = %v, wanted = %v (%v)", got, tt.want, err)
			}
			var apiErr *anthropic.Error
			if !errors.As(err, &apiErr) {
				t.Errorf("lost the API error: %v", err)
			}
		})
	}
}

func TestWithModel(t *testing.T) {
	if _, err := claude.New(anthropic.NewClient(), claude.WithModel("gpt-4o")); err == nil {
		t.Error("WithModel(gpt-4o) error = nil")
	}
	if _, err := claude.New(anthropic.NewClient(), claude.WithModel("claude-opus-4-1")); err != nil {
		t.Errorf("WithModel(claude-opus-4-1) error = %v", err)
	}
}
