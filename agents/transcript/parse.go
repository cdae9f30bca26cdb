/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chainguard.dev/devloop/agents/conversation"
)

// ErrTruncated is returned when a transcript ends without a closing divider.
var ErrTruncated = errors.New("transcript ends mid-message")

// Entry is the transcript view of one message: what a reader of the file can
// recover about it.
type Entry struct {
	Role        conversation.Role
	Text        string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// ToolUse is a rendered tool_use block. Input is compact JSON.
type ToolUse struct {
	Name  string
	Input string
}

// ToolResult is a rendered tool_result block.
type ToolResult struct {
	IsError bool
	Content string
}

// EntryOf returns the entry that rendering m and parsing it back produces.
func EntryOf(m conversation.Message) Entry {
	e := Entry{Role: m.Role, Text: m.Text()}
	for _, b := range m.Content {
		switch b.Type {
		case conversation.BlockToolUse:
			e.ToolUses = append(e.ToolUses, ToolUse{Name: b.Name, Input: compactInput(b.Input)})
		case conversation.BlockToolResult:
			e.ToolResults = append(e.ToolResults, ToolResult{IsError: b.IsError, Content: b.Content})
		}
	}
	return e
}

// ParseFile parses a transcript file written by WriteSnapshot.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses transcript text. Entries before a truncated trailing message
// are returned along with ErrTruncated.
func Parse(r io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	content := string(raw)
	if content == "" {
		return nil, nil
	}

	var (
		entries []Entry
		record  []string
		start   = 1
	)
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, line := range lines {
		if line != dividerLine {
			record = append(record, line)
			continue
		}
		// The divider starts with a newline, leaving one empty line behind
		// the message body.
		if len(record) < 2 || record[len(record)-1] != "" {
			return entries, fmt.Errorf("line %d: malformed divider", i+1)
		}
		e, err := parseRecord(record[:len(record)-1], start)
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
		record, start = nil, i+2
	}
	if len(record) > 0 {
		return entries, fmt.Errorf("line %d: %w", start, ErrTruncated)
	}
	return entries, nil
}

func parseRecord(lines []string, start int) (Entry, error) {
	head, ok := strings.CutPrefix(lines[0], rolePrefix)
	if !ok {
		return Entry{}, fmt.Errorf("line %d: expected %q header, got %q", start, rolePrefix, lines[0])
	}
	role, text, _ := strings.Cut(head, " ")
	e := Entry{Role: conversation.Role(role), Text: text}
	field := &e.Text

	for i, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, toolUsePrefix):
			name, input, _ := strings.Cut(strings.TrimPrefix(line, toolUsePrefix), " ")
			e.ToolUses = append(e.ToolUses, ToolUse{Name: name, Input: input})
			field = &e.ToolUses[len(e.ToolUses)-1].Input
		case strings.HasPrefix(line, toolResultOKPrefix):
			e.ToolResults = append(e.ToolResults, ToolResult{Content: strings.TrimPrefix(line, toolResultOKPrefix)})
			field = &e.ToolResults[len(e.ToolResults)-1].Content
		case strings.HasPrefix(line, toolResultErrPrefix):
			e.ToolResults = append(e.ToolResults, ToolResult{IsError: true, Content: strings.TrimPrefix(line, toolResultErrPrefix)})
			field = &e.ToolResults[len(e.ToolResults)-1].Content
		case strings.HasPrefix(line, rolePrefix), strings.HasPrefix(line, toolResultPrefix):
			return Entry{}, fmt.Errorf("line %d: unexpected header %q", start+i+1, line)
		default:
			*field += "\n" + strings.TrimPrefix(line, escape)
		}
	}
	return e, nil
}
