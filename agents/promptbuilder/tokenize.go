/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// walkTemplate copies template, replacing each {{name}} with resolve(name).
func walkTemplate(template string, resolve func(name string) (string, error)) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	for {
		before, rest, found := strings.Cut(template, "{{")
		out.WriteString(before)
		if !found {
			return out.String(), nil
		}
		inner, after, closed := strings.Cut(rest, "}}")
		if !closed {
			return "", errors.New("unclosed placeholder: missing '}}'")
		}
		name := strings.TrimSpace(inner)
		if !isIdentifier(name) {
			return "", fmt.Errorf("invalid placeholder name %q", name)
		}
		val, err := resolve(name)
		if err != nil {
			return "", err
		}
		out.WriteString(val)
		template = after
	}
}

// isIdentifier reports whether s is a letter followed by letters, digits or
// underscores.
func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
