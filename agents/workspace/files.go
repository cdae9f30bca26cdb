/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Line is one numbered line of a file.
type Line struct {
	Number int
	Text   string
}

func (l Line) String() string {
	return fmt.Sprintf("%d: %s", l.Number, l.Text)
}

// ReadLines returns lines start through end of the file, 1-indexed and
// inclusive. A start below 1 reads from the first line, an end of 0 or past
// the last line reads to the end of the file.
func (w *Workspace) ReadLines(rel string, start, end int) ([]Line, error) {
	full, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	lines, _ := splitLines(string(data))
	start, end = clampRange(start, end, len(lines))
	if start > len(lines) && len(lines) > 0 {
		return nil, fmt.Errorf("starting line %d is past the end of %s (%d lines)", start, rel, len(lines))
	}
	out := make([]Line, 0, max(end-start+1, 0))
	for i := start; i <= end; i++ {
		out = append(out, Line{Number: i, Text: lines[i-1]})
	}
	return out, nil
}

// ReplaceLines replaces lines start through end (1-indexed, inclusive) with
// replacement. A start below 1 means the first line and an end of 0 means
// the last line. When end is before start nothing is removed and the
// replacement is inserted ahead of start. A missing file is created holding
// just the replacement.
func (w *Workspace) ReplaceLines(rel string, start, end int, replacement []string) error {
	full, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return writeFile(full, joinLines(replacement, true))
	case err != nil:
		return err
	}

	lines, trailing := splitLines(string(data))
	start, end = clampRange(start, end, len(lines))
	start = min(start, len(lines)+1)

	out := make([]string, 0, len(lines)+len(replacement))
	out = append(out, lines[:start-1]...)
	out = append(out, replacement...)
	if end >= start {
		out = append(out, lines[end:]...)
	} else {
		out = append(out, lines[start-1:]...)
	}
	return writeFile(full, joinLines(out, trailing || len(lines) == 0))
}

// Create writes content to rel, creating parent directories. When pubMod is
// set and rel is a Rust source file, `pub mod <stem>;` is appended to the
// sibling lib.rs, or mod.rs when there is no lib.rs. The returned message
// says what was done.
func (w *Workspace) Create(rel, content string, pubMod bool) (string, error) {
	full, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := writeFile(full, content); err != nil {
		return "", err
	}
	name := filepath.Base(full)
	if !pubMod || filepath.Ext(name) != ".rs" {
		return "Success created file with content", nil
	}
	switch name {
	case "lib.rs", "mod.rs", "main.rs":
		return "Success created file with content", nil
	}

	stem := strings.TrimSuffix(name, ".rs")
	dir := filepath.Dir(full)
	for _, parent := range []string{"lib.rs", "mod.rs"} {
		target := filepath.Join(dir, parent)
		if _, err := os.Stat(target); err != nil {
			continue
		}
		f, err := os.OpenFile(target, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(f, "\npub mod %s;\n", stem); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return fmt.Sprintf("Success created file with content and exported it from %s", parent), nil
	}
	return "Success created file with content. No lib.rs or mod.rs found in the parent directory, not adding the export line", nil
}

func writeFile(full, content string) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(full); err == nil {
		mode = fi.Mode().Perm()
	}
	return os.WriteFile(full, []byte(content), mode)
}

// splitLines splits s on newlines and reports whether s ended with one.
func splitLines(s string) ([]string, bool) {
	if s == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n"), trailing
}

func joinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailing {
		s += "\n"
	}
	return s
}

func clampRange(start, end, n int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > n {
		end = n
	}
	return start, end
}
