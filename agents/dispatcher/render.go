/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Render converts a handler's return value into tool result text: strings
// as-is, string slices one per line, Stringers via String, anything else as
// indented JSON.
func Render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, "\n")
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// Truncate keeps the head and tail of s when it exceeds maxChars, with a
// marker in place of the removed middle.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	head := maxChars / 2
	tail := len(s) - (maxChars - head)
	// Cut on rune boundaries only.
	for head > 0 && !utf8.RuneStart(s[head]) {
		head--
	}
	for tail < len(s) && !utf8.RuneStart(s[tail]) {
		tail++
	}
	marker := fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. Re-run the tool with more targeted parameters to see them.]\n\n", tail-head)
	return s[:head] + marker + s[tail:]
}
