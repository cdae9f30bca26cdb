/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package driver

import (
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/executor/retry"
	"chainguard.dev/devloop/agents/metrics"
)

// Option is a functional option for configuring the driver.
type Option func(*Driver) error

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(d *Driver) error {
		if strings.TrimSpace(model) == "" {
			return errors.New("model cannot be empty")
		}
		d.settings.Model = model
		return nil
	}
}

// WithMaxTokens sets the maximum tokens per response.
func WithMaxTokens(tokens int64) Option {
	return func(d *Driver) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		if tokens > 64000 {
			return fmt.Errorf("max tokens %d exceeds maximum of 64000", tokens)
		}
		d.settings.MaxTokens = tokens
		return nil
	}
}

// WithTemperature sets the sampling temperature, between 0.0 and 1.0.
func WithTemperature(temp float64) Option {
	return func(d *Driver) error {
		if temp < 0.0 || temp > 1.0 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", temp)
		}
		d.settings.Temperature = temp
		return nil
	}
}

// WithSystemPrompt overrides the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(d *Driver) error {
		if strings.TrimSpace(prompt) == "" {
			return errors.New("system prompt cannot be empty")
		}
		d.settings.System = prompt
		return nil
	}
}

// WithRetryPolicy replaces the rate-limit retry policy around model calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(d *Driver) error {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid retry policy: %w", err)
		}
		d.retry = p
		return nil
	}
}

// WithMaxRuns sets the ceiling on model calls per run.
func WithMaxRuns(n int) Option {
	return func(d *Driver) error {
		if n < 1 {
			return fmt.Errorf("max runs must be at least 1, got %d", n)
		}
		d.maxRuns = n
		return nil
	}
}

// WithSummarization compacts the history when the total tokens of the last
// model call exceed threshold. A threshold of 0 disables summarization. An
// empty prompt keeps the default summary prompt.
func WithSummarization(threshold int64, prompt string) Option {
	return func(d *Driver) error {
		if threshold < 0 {
			return fmt.Errorf("summarization threshold cannot be negative, got %d", threshold)
		}
		d.summarizeThreshold = threshold
		if prompt != "" {
			d.summaryPrompt = prompt
		}
		return nil
	}
}

// WithSessionDir writes transcript snapshots into dir after every history change.
func WithSessionDir(dir string) Option {
	return func(d *Driver) error {
		if dir == "" {
			return errors.New("session directory cannot be empty")
		}
		d.sessionDir = dir
		return nil
	}
}

// WithObserver registers a callback for state transitions.
func WithObserver(o Observer) Option {
	return func(d *Driver) error {
		if o == nil {
			return errors.New("observer cannot be nil")
		}
		d.observers = append(d.observers, o)
		return nil
	}
}

// WithGenAIMetrics records token usage on m.
func WithGenAIMetrics(m *metrics.GenAI) Option {
	return func(d *Driver) error {
		if m == nil {
			return errors.New("genai metrics cannot be nil")
		}
		d.genai = m
		return nil
	}
}
