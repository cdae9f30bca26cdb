/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry wraps a single external call site in an explicit retry
// policy: a predicate over the error kind, a bounded number of attempts and
// a doubling backoff schedule.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"chainguard.dev/devloop/agents/model"
	"github.com/chainguard-dev/clog"
)

// Policy configures retry behavior for model calls.
type Policy struct {
	// Retryable decides whether an error is worth another attempt.
	// Nil means model.IsRateLimited.
	Retryable func(error) bool
	// MaxAttempts is the total number of attempts, including the first (default: 5).
	MaxAttempts int
	// BaseBackoff is the delay before the first retry (default: 4s).
	BaseBackoff time.Duration
	// MaxBackoff caps the doubling delay (default: 60s).
	MaxBackoff time.Duration
	// MaxJitter is the maximum random jitter added to each delay (default: 0).
	MaxJitter time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Validate checks that the policy has usable values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if p.BaseBackoff < 0 {
		return errors.New("base backoff cannot be negative")
	}
	if p.MaxBackoff < p.BaseBackoff {
		return errors.New("max backoff cannot be less than base backoff")
	}
	if p.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// DefaultPolicy retries rate-limited model calls up to five attempts,
// waiting 4s, 8s, 16s and 32s between them.
func DefaultPolicy() Policy {
	return Policy{
		Retryable:   model.IsRateLimited,
		MaxAttempts: 5,
		BaseBackoff: 4 * time.Second,
		MaxBackoff:  60 * time.Second,
	}
}

// Delay returns the backoff before retry n (0-based), without jitter:
// BaseBackoff * 2^n clamped to [BaseBackoff, MaxBackoff].
func (p Policy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := p.BaseBackoff
	for range n {
		if d >= p.MaxBackoff {
			break
		}
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

// Do calls fn until it succeeds, returns an error the policy does not retry,
// or the attempts are exhausted.
func Do[T any](ctx context.Context, p Policy, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, fmt.Errorf("%s: %w", operation, err)
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = model.IsRateLimited
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := range p.MaxAttempts {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		if attempt+1 >= p.MaxAttempts {
			break
		}

		backoff := p.Delay(attempt) + p.jitter()
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_attempts", p.MaxAttempts).
			With("backoff", backoff).
			With("error", err.Error()).
			Warn("Rate limit hit, retrying")
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, backoff, err)
		}
		if err := sleep(ctx, backoff); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, p.MaxAttempts, lastErr)
}

func (p Policy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(p.MaxJitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
