/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claude

import (
	"fmt"
	"strings"
)

// Option is a functional option for configuring the client.
type Option func(*Client) error

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *Client) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
		}
		c.model = model
		return nil
	}
}
