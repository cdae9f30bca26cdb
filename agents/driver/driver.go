/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package driver runs the agent loop: it owns the conversation history,
// calls the model, hands tool requests to the dispatcher and decides when
// the run is over.
//
// The loop is an explicit state machine:
//
//	INIT -> AWAITING_MODEL
//	AWAITING_MODEL -> DISPATCHING_TOOLS   stop_reason tool_use
//	AWAITING_MODEL -> SUMMARIZING         last call exceeded the token threshold
//	AWAITING_MODEL -> DONE                end_turn, stop_sequence, max_tokens or max runs
//	DISPATCHING_TOOLS -> AWAITING_MODEL
//	SUMMARIZING -> AWAITING_MODEL
//
// After every change to the history both transcript files in the session
// directory are rewritten, so a crash leaves the latest transcript on disk.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/devloop/agents/agenttrace"
	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/dispatcher"
	"chainguard.dev/devloop/agents/executor/retry"
	"chainguard.dev/devloop/agents/metrics"
	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/prompts"
	"chainguard.dev/devloop/agents/transcript"
	"github.com/chainguard-dev/clog"
)

const (
	// DefaultMaxRuns bounds the model calls of one run.
	DefaultMaxRuns = 1000
	// DefaultSummarizeThreshold is the total token count of a single call
	// above which the history is summarized.
	DefaultSummarizeThreshold = 50_000
)

// Driver runs conversations. It is safe to reuse for several sequential
// runs; each Run owns its own history.
type Driver struct {
	client             model.Client
	dispatcher         *dispatcher.Dispatcher
	settings           model.RunSettings
	retry              retry.Policy
	maxRuns            int
	summarizeThreshold int64
	summaryPrompt      string
	sessionDir         string
	observers          []Observer
	genai              *metrics.GenAI
}

// New creates a driver that calls client and executes tools with disp.
func New(client model.Client, disp *dispatcher.Dispatcher, opts ...Option) (*Driver, error) {
	if client == nil {
		return nil, errors.New("model client cannot be nil")
	}
	if disp == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}
	d := &Driver{
		client:             client,
		dispatcher:         disp,
		retry:              retry.DefaultPolicy(),
		maxRuns:            DefaultMaxRuns,
		summarizeThreshold: DefaultSummarizeThreshold,
		summaryPrompt:      prompts.Summary,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return d, nil
}

// Result describes a finished run.
type Result struct {
	// History is the conversation as last sent to the model, plus the final
	// response. After a summarization it starts from the summary.
	History []conversation.Message
	// Transcript is every message of the run in order, including those
	// replaced by a summary. It is what the transcript files contain.
	Transcript     []conversation.Message
	Turns          int
	StopReason     conversation.StopReason
	Outcome        Outcome
	Usage          model.Usage
	Model          string
	ToolCalls      int
	ToolErrors     int
	Summarizations int
	Session        string
	Duration       time.Duration
}

// run is the state of one Run call.
type run struct {
	*Driver
	task   string
	state  State
	result Result
	last   *model.Response
	// lastTotal is the total tokens of the most recent call, the
	// summarization trigger.
	lastTotal int64
	trace     *agenttrace.Trace
}

// Run drives one conversation seeded with task until it is done. Tool
// failures never end the run. Model errors the retry policy gives up on, and
// transcript write failures, are returned along with the partial result.
func (d *Driver) Run(ctx context.Context, task string) (_ *Result, err error) {
	if strings.TrimSpace(task) == "" {
		return nil, errors.New("task cannot be empty")
	}
	start := time.Now()
	r := &run{Driver: d, task: task, state: Init}
	r.result.Session = d.sessionDir
	r.trace = agenttrace.StartTrace(ctx, task)
	ctx = r.trace.Context()
	log := clog.FromContext(ctx).With("session", d.sessionDir)

	defer func() {
		r.result.Duration = time.Since(start)
		if err != nil {
			r.result.Outcome = OutcomeError
			log.With("error", err.Error()).Errorf("Agent run failed after %d turns", r.result.Turns)
		}
		metrics.Runs.WithLabelValues(string(r.result.Outcome)).Inc()
		r.trace.Annotate("outcome", string(r.result.Outcome))
		r.trace.Complete(string(r.result.Outcome), err)
		log.Info("Run report\n" + Report(&r.result))
	}()

	r.transition(AwaitingModel)
	if err := r.append(conversation.UserText(task)); err != nil {
		return &r.result, err
	}

	for r.state != Done {
		switch r.state {
		case AwaitingModel:
			err = r.awaitModel(ctx)
		case DispatchingTools:
			err = r.dispatchTools(ctx)
		case Summarizing:
			err = r.summarize(ctx)
		default:
			err = fmt.Errorf("unexpected state %v", r.state)
		}
		if err != nil {
			return &r.result, err
		}
	}
	log.With("turns", r.result.Turns).
		With("outcome", string(r.result.Outcome)).
		Info("Agent run completed")
	return &r.result, nil
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	for _, o := range r.observers {
		o(from, to)
	}
}

// append adds m to both the model history and the transcript, then
// snapshots the transcript.
func (r *run) append(m conversation.Message) error {
	r.result.History = append(r.result.History, m)
	r.result.Transcript = append(r.result.Transcript, m)
	return r.snapshot()
}

func (r *run) snapshot() error {
	if r.sessionDir == "" {
		return nil
	}
	if err := transcript.WriteSnapshot(r.sessionDir, r.result.Transcript); err != nil {
		return fmt.Errorf("writing transcript snapshot: %w", err)
	}
	return nil
}

func (r *run) awaitModel(ctx context.Context) error {
	if r.result.Turns >= r.maxRuns {
		clog.FromContext(ctx).With("max_runs", r.maxRuns).Warn("Run ceiling reached, stopping")
		r.result.Outcome = OutcomeMaxRuns
		r.transition(Done)
		return nil
	}
	if r.summarizeThreshold > 0 && r.lastTotal > r.summarizeThreshold {
		r.transition(Summarizing)
		return nil
	}

	resp, err := r.call(ctx, "model_call", model.Request{
		Settings: r.settings,
		Messages: conversation.CloneAll(r.result.History),
		Tools:    r.dispatcher.Definitions(),
	})
	if err != nil {
		return err
	}
	r.result.Turns++
	r.result.StopReason = resp.StopReason
	r.last = resp

	clog.FromContext(ctx).With("turn", r.result.Turns).
		With("state", r.state.String()).
		With("stop_reason", string(resp.StopReason)).
		With("input_tokens", resp.Usage.InputTokens).
		With("output_tokens", resp.Usage.OutputTokens).
		Info("Model call completed")

	if err := r.append(resp.Message); err != nil {
		return err
	}

	switch resp.StopReason {
	case conversation.StopToolUse:
		r.transition(DispatchingTools)
	case conversation.StopEndTurn, conversation.StopSequence, conversation.StopMaxTokens:
		r.result.Outcome = Outcome(resp.StopReason)
		r.transition(Done)
	default:
		clog.FromContext(ctx).With("stop_reason", string(resp.StopReason)).Warn("Unrecognized stop reason, stopping")
		r.result.Outcome = OutcomeUnknownStop
		r.transition(Done)
	}
	return nil
}

func (r *run) dispatchTools(ctx context.Context) error {
	results := r.dispatcher.Dispatch(ctx, r.trace, r.last)
	if len(results) == 0 {
		clog.FromContext(ctx).Warn("Model requested tool use without any tool calls, stopping")
		r.result.Outcome = OutcomeNoToolCalls
		r.transition(Done)
		return nil
	}
	for _, b := range results {
		r.result.ToolCalls++
		if b.IsError {
			r.result.ToolErrors++
		}
	}
	if err := r.append(conversation.ToolResults(results)); err != nil {
		return err
	}
	r.transition(AwaitingModel)
	return nil
}

// summarize asks the model, without tools, to summarize the history and
// restarts the history from the task and that summary.
func (r *run) summarize(ctx context.Context) error {
	log := clog.FromContext(ctx).With("last_total_tokens", r.lastTotal)
	log.Info("Summarizing conversation history")

	request := withSummaryRequest(r.result.History, r.summaryPrompt)
	resp, err := r.call(ctx, "summarize", model.Request{
		Settings: r.settings,
		Messages: request,
	})
	if err != nil {
		return err
	}
	r.lastTotal = 0

	r.result.Transcript = append(r.result.Transcript, conversation.UserText(r.summaryPrompt), resp.Message)
	summary := strings.TrimSpace(resp.Message.Text())
	if summary == "" {
		log.Warn("Model returned an empty summary, keeping the full history")
		if err := r.snapshot(); err != nil {
			return err
		}
		r.transition(AwaitingModel)
		return nil
	}

	resumed := conversation.UserText(prompts.Resume(r.task, summary))
	r.result.History = []conversation.Message{resumed}
	r.result.Transcript = append(r.result.Transcript, resumed)
	if err := r.snapshot(); err != nil {
		return err
	}
	r.result.Summarizations++
	metrics.Summarizations.Inc()
	r.trace.Annotate("summarizations", r.result.Summarizations)
	r.transition(AwaitingModel)
	return nil
}

// withSummaryRequest returns a copy of history whose last user message
// carries the summary prompt as an extra text block. The last message is
// always a user message while awaiting the model.
func withSummaryRequest(history []conversation.Message, prompt string) []conversation.Message {
	out := conversation.CloneAll(history)
	if n := len(out); n > 0 && out[n-1].Role == conversation.RoleUser {
		out[n-1].Content = append(out[n-1].Content, conversation.TextBlock(prompt))
		return out
	}
	return append(out, conversation.UserText(prompt))
}

// call issues one model request under the retry policy and records usage.
func (r *run) call(ctx context.Context, operation string, req model.Request) (*model.Response, error) {
	policy := r.retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.ModelRetries.Inc()
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	resp, err := retry.Do(ctx, policy, operation, func(ctx context.Context) (*model.Response, error) {
		return r.client.Complete(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: model client returned no response", operation)
	}

	metrics.ModelCalls.WithLabelValues(string(resp.StopReason)).Inc()
	r.result.Usage = r.result.Usage.Add(resp.Usage)
	r.result.Model = resp.Model
	r.lastTotal = resp.Usage.Total()
	r.trace.RecordTokenUsage(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	if r.genai != nil {
		r.genai.RecordTokens(ctx, resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	return resp, nil
}

// Report renders the run summary as a markdown table.
func Report(res *Result) string {
	var buf bytes.Buffer
	if err := WriteReport(&buf, res); err != nil {
		return fmt.Sprintf("failed to render report: %v", err)
	}
	return buf.String()
}
