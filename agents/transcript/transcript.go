/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package transcript renders conversation history into the human-readable
// transcript files kept in each session directory, and parses them back.
//
// Every message renders as a header line followed by one line per tool call
// and one per tool result:
//
//	ROLE: assistant Let me look at that file.
//	TOOL USE: read_file {"filename":"src/lib.rs"}
//
//	--------------------------------------------------------------------------------
//	ROLE: user
//	TOOL RESULT success: 1: pub mod api;
//
// Multi-line values continue on the following lines. A continuation line that
// would read as a header or divider is prefixed with a backslash.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/devloop/agents/conversation"
)

const (
	// FullFile holds every message of the history.
	FullFile = "text.txt"
	// AssistantFile holds only the assistant messages.
	AssistantFile = "assistant_messages.txt"

	rolePrefix          = "ROLE: "
	toolUsePrefix       = "TOOL USE: "
	toolResultPrefix    = "TOOL RESULT "
	toolResultOKPrefix  = toolResultPrefix + "success: "
	toolResultErrPrefix = toolResultPrefix + "error: "
	escape              = `\`
)

var dividerLine = strings.Repeat("-", 80)

// Divider separates consecutive messages.
var Divider = "\n" + dividerLine + "\n"

// Render returns the transcript text of a single message, without divider.
func Render(m conversation.Message) string {
	var sb strings.Builder
	writeField(&sb, rolePrefix+string(m.Role)+" ", m.Text())
	for _, b := range m.Content {
		if b.Type == conversation.BlockToolUse {
			writeField(&sb, toolUsePrefix+b.Name+" ", compactInput(b.Input))
		}
	}
	for _, b := range m.Content {
		if b.Type != conversation.BlockToolResult {
			continue
		}
		prefix := toolResultOKPrefix
		if b.IsError {
			prefix = toolResultErrPrefix
		}
		writeField(&sb, prefix, b.Content)
	}
	return sb.String()
}

// RenderAll renders every message of history for which keep returns true,
// each followed by the divider. A nil keep keeps everything.
func RenderAll(history []conversation.Message, keep func(conversation.Message) bool) string {
	var sb strings.Builder
	for _, m := range history {
		if keep != nil && !keep(m) {
			continue
		}
		sb.WriteString(Render(m))
		sb.WriteString(Divider)
	}
	return sb.String()
}

// IsAssistant reports whether m was produced by the model.
func IsAssistant(m conversation.Message) bool {
	return m.Role == conversation.RoleAssistant
}

// WriteSnapshot overwrites both transcript files in dir with the current
// history. Each file is replaced atomically, so a reader never observes a
// partially written transcript.
func WriteSnapshot(dir string, history []conversation.Message) error {
	if err := writeAtomic(filepath.Join(dir, FullFile), RenderAll(history, nil)); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, AssistantFile), RenderAll(history, IsAssistant))
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func writeField(sb *strings.Builder, header, value string) {
	lines := strings.Split(value, "\n")
	sb.WriteString(header)
	sb.WriteString(lines[0])
	for _, l := range lines[1:] {
		sb.WriteByte('\n')
		if needsEscape(l) {
			sb.WriteString(escape)
		}
		sb.WriteString(l)
	}
	sb.WriteByte('\n')
}

func needsEscape(line string) bool {
	return strings.HasPrefix(line, escape) ||
		strings.HasPrefix(line, rolePrefix) ||
		strings.HasPrefix(line, toolUsePrefix) ||
		strings.HasPrefix(line, toolResultPrefix) ||
		strings.HasPrefix(line, dividerLine)
}

func compactInput(in json.RawMessage) string {
	if len(bytes.TrimSpace(in)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, in); err != nil {
		return string(in)
	}
	return buf.String()
}
