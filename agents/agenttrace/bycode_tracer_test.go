/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestByCodeCapturesRun(t *testing.T) {
	ctx := WithRunContext(context.Background(), RunContext{
		Repository: "redgold-sh/redgold",
		Issue:      42,
		Mode:       "issue",
	})

	var captured *Trace
	tracer := ByCode(func(trace *Trace) { captured = trace })

	trace := tracer.NewTrace(ctx, "fix bug #42")
	trace.RecordTokenUsage("claude-sonnet-4-5", 1200, 80)
	trace.StartToolCall("toolu_1", "git_add", map[string]any{"file_path": "src/lib.rs"}).Complete("added", nil)
	trace.StartToolCall("toolu_2", "cargo_check", nil).Complete(nil, errors.New("error[E0425]"))
	trace.Complete("end_turn", nil)

	if captured != trace {
		t.Fatalf("captured trace: got = %p, wanted = %p", captured, trace)
	}
	if captured.Run.Issue != 42 || captured.Run.Repository != "redgold-sh/redgold" {
		t.Errorf("run context: got = %+v", captured.Run)
	}
	if got := len(captured.ToolCalls); got != 2 {
		t.Fatalf("tool calls: got = %d, wanted = 2", got)
	}
	if captured.ToolCalls[1].Error == nil {
		t.Error("cargo_check error was not kept on the tool call")
	}
	if captured.InputTokens != 1200 || captured.OutputTokens != 80 {
		t.Errorf("tokens: got = %d/%d, wanted = 1200/80", captured.InputTokens, captured.OutputTokens)
	}
	if captured.Result != "end_turn" {
		t.Errorf("outcome: got = %q, wanted = end_turn", captured.Result)
	}
}

func TestByCodeCallbacks(t *testing.T) {
	for _, tt := range []struct {
		name  string
		build func(TraceCallback) []TraceCallback
		want  int32
	}{{
		name:  "none",
		build: func(TraceCallback) []TraceCallback { return nil },
	}, {
		name:  "nil is skipped",
		build: func(cb TraceCallback) []TraceCallback { return []TraceCallback{nil, cb} },
		want:  1,
	}, {
		name:  "every callback sees the trace",
		build: func(cb TraceCallback) []TraceCallback { return []TraceCallback{cb, cb, cb} },
		want:  3,
	}} {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu    sync.Mutex
				calls atomic.Int32
				seen  = map[*Trace]bool{}
			)
			cb := func(trace *Trace) {
				calls.Add(1)
				mu.Lock()
				defer mu.Unlock()
				seen[trace] = true
			}

			trace := ByCode(tt.build(cb)...).NewTrace(context.Background(), randomString())
			trace.Complete("max_runs", nil)

			if got := calls.Load(); got != tt.want {
				t.Errorf("callbacks: got = %d, wanted = %d", got, tt.want)
			}
			if tt.want > 0 && (len(seen) != 1 || !seen[trace]) {
				t.Errorf("callbacks saw %d distinct traces, wanted only the completed one", len(seen))
			}
		})
	}
}

func TestByCodeRunsCallbacksConcurrently(t *testing.T) {
	const n = 3
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})
	cb := func(*Trace) {
		arrived.Done()
		<-release
	}

	trace := ByCode(cb, cb, cb).NewTrace(context.Background(), randomString())
	done := make(chan struct{})
	go func() {
		defer close(done)
		trace.Complete("end_turn", nil)
	}()

	// Every callback must be running at once before any of them may return.
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()
	select {
	case <-all:
	case <-time.After(time.Second):
		t.Fatal("callbacks were not started concurrently")
	}
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Complete did not return after the callbacks finished")
	}
}
