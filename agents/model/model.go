/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package model defines the boundary between the conversation driver and a
// language model provider. Providers live in subpackages and translate
// conversation messages and tool definitions to their own wire shapes.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/conversation"
	"chainguard.dev/devloop/agents/toolcall"
)

// ErrRateLimited marks provider errors that should be retried with backoff.
// Providers wrap the underlying API error with it.
var ErrRateLimited = errors.New("model rate limited")

// IsRateLimited reports whether err is a rate-limit-class error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// RateLimited wraps err so that IsRateLimited reports true.
func RateLimited(err error) error {
	return fmt.Errorf("%w: %w", ErrRateLimited, err)
}

// RunSettings holds the per-call configuration. A copy is taken for every
// request so it cannot change during a call.
type RunSettings struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	// System overrides the provider's default system prompt when non-empty.
	System string
}

const (
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.0
	maxTokensCeiling   = 64000
)

// Defaults fills zero fields. model is the provider's default model name.
func (s RunSettings) Defaults(model string) RunSettings {
	if s.Model == "" {
		s.Model = model
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// Validate checks the settings are acceptable to every provider.
func (s RunSettings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("model is required")
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", s.MaxTokens)
	}
	if s.MaxTokens > maxTokensCeiling {
		return fmt.Errorf("max tokens %d exceeds maximum of %d", s.MaxTokens, maxTokensCeiling)
	}
	if s.Temperature < 0.0 || s.Temperature > 1.0 {
		return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", s.Temperature)
	}
	return nil
}

// Request is one model call.
type Request struct {
	Settings RunSettings
	Messages []conversation.Message
	// Tools may be empty, in which case the model cannot request tool use.
	Tools []toolcall.Definition
}

// Usage reports token consumption of one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// Response is the provider-independent result of one call. Message always
// has the assistant role.
type Response struct {
	Message    conversation.Message
	StopReason conversation.StopReason
	Usage      Usage
	Model      string
}

// Client issues model calls.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// StatusRateLimited reports whether an HTTP status code is in the
// rate-limit class: 429, plus 529 which Anthropic uses for overload.
func StatusRateLimited(code int) bool {
	return code == 429 || code == 529
}
