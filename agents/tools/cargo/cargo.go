/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package cargo provides the cargo_check tool, which type-checks the Rust
// workspace and reports compiler errors to the model.
package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"chainguard.dev/devloop/agents/toolcall"
	"github.com/chainguard-dev/clog"
)

const (
	// ErrorContextLines is how many lines following an error line are kept.
	ErrorContextLines = 60
	// DefaultTimeout bounds one cargo check.
	DefaultTimeout = 10 * time.Minute
)

// Workspace is the part of the run context cargo_check needs.
type Workspace interface {
	Root() string
}

// Checker runs cargo check in a workspace.
type Checker struct {
	ws      Workspace
	binary  string
	timeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker) error

// WithBinary overrides the cargo executable.
func WithBinary(path string) Option {
	return func(c *Checker) error {
		if path == "" {
			return errors.New("cargo binary cannot be empty")
		}
		c.binary = path
		return nil
	}
}

// WithTimeout bounds a single check.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// New creates a Checker for ws.
func New(ws Workspace, opts ...Option) (*Checker, error) {
	if ws == nil {
		return nil, errors.New("workspace cannot be nil")
	}
	c := &Checker{ws: ws, binary: "cargo", timeout: DefaultTimeout}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return c, nil
}

// Tool returns the cargo_check handler.
func (c *Checker) Tool() (toolcall.Handler, error) {
	return toolcall.New(toolcall.CargoCheck,
		"Compile the Rust project in the current workspace with `cargo check` and return the compiler errors, if any.",
		func(ctx context.Context, _ toolcall.NoInput) (any, error) {
			return c.Check(ctx)
		})
}

// Check runs cargo check with warnings disabled. A clean build yields a
// single success line; a failing build yields one entry per compiler error.
// Only failures to run cargo at all are returned as errors.
func (c *Checker) Check(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dir := c.ws.Root()
	cmd := exec.CommandContext(ctx, c.binary, "check")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "RUSTFLAGS=-A warnings")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	log := clog.FromContext(ctx).With("dir", dir).With("duration", time.Since(start).String())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		log.Info("Cargo check succeeded")
		return []string{fmt.Sprintf("Cargo check completed successfully in %s", dir)}, nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		errs := Errors(stderr.String())
		log.With("errors", len(errs)).Info("Cargo check failed")
		if len(errs) == 0 {
			return []string{strings.TrimSpace(Filter(stderr.String()))}, nil
		}
		return errs, nil
	default:
		return nil, fmt.Errorf("running cargo check: %w", err)
	}
}

// Errors extracts every compiler error from cargo's stderr: each line that
// starts with "error" together with the lines that follow it.
func Errors(stderr string) []string {
	lines := strings.Split(stderr, "\n")
	var out []string
	for i, line := range lines {
		if !strings.HasPrefix(line, "error") {
			continue
		}
		end := min(i+ErrorContextLines, len(lines))
		out = append(out, strings.TrimRight(strings.Join(lines[i:end], "\n"), "\n"))
	}
	return out
}

// Filter drops cargo's progress and warning lines.
func Filter(stderr string) string {
	var keep []string
	for _, line := range strings.Split(stderr, "\n") {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "Checking") || strings.HasPrefix(s, "Compiling") || strings.HasPrefix(s, "warning") {
			continue
		}
		keep = append(keep, line)
	}
	return strings.Join(keep, "\n")
}
