/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package files provides the file viewing and editing tools.
package files

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/toolcall"
	"chainguard.dev/devloop/agents/workspace"
	"github.com/chainguard-dev/clog"
)

// Workspace is the part of the run context the file tools need.
type Workspace interface {
	ReadLines(rel string, start, end int) ([]workspace.Line, error)
	ReplaceLines(rel string, start, end int, replacement []string) error
	Create(rel, content string, pubMod bool) (string, error)
}

// ReadInput is the input of read_file.
type ReadInput struct {
	Filename     string `json:"filename" jsonschema:"required,description=The relative path of the file to read within the current repository"`
	StartingLine *int   `json:"starting_line,omitempty" jsonschema:"description=The (inclusive) 1-indexed starting line number to begin reading. Omit to start at the beginning"`
	EndingLine   *int   `json:"ending_line,omitempty" jsonschema:"description=The (inclusive) 1-indexed ending line number to stop reading. Omit to read to the end of the file"`
}

// EditInput is the input of edit_file_replace_lines.
type EditInput struct {
	Filename         string   `json:"filename" jsonschema:"required,description=The relative path of the file to edit"`
	StartingLine     *int     `json:"starting_line" jsonschema:"required,description=The (inclusive) 1-indexed first line to replace"`
	EndingLine       *int     `json:"ending_line" jsonschema:"required,description=The (inclusive) 1-indexed last line to replace"`
	ReplacementLines []string `json:"replacement_lines,omitempty" jsonschema:"description=Lines to put in place of the replaced range. Omit to delete the range"`
}

// CreateInput is the input of create_file.
type CreateInput struct {
	Path                string `json:"repository_relative_path" jsonschema:"required,description=Path of the new file relative to the repository root"`
	Content             string `json:"content" jsonschema:"required,description=Full content of the new file"`
	IncludeAsRustPubMod *bool  `json:"include_as_rust_pub_mod,omitempty" jsonschema:"description=For .rs files add a pub mod line to the sibling lib.rs or mod.rs. Defaults to true"`
}

// Tools returns the read_file, edit_file_replace_lines and create_file
// handlers bound to ws.
func Tools(ws Workspace) ([]toolcall.Handler, error) {
	if ws == nil {
		return nil, errors.New("workspace cannot be nil")
	}
	read, err := toolcall.New(toolcall.ReadFile,
		"Read a file in the current workspace, returning the lines between starting_line and ending_line prefixed with their line numbers. Line numbers are 1-indexed and inclusive.",
		func(ctx context.Context, in ReadInput) (any, error) {
			lines, err := ws.ReadLines(in.Filename, deref(in.StartingLine), deref(in.EndingLine))
			if err != nil {
				return nil, err
			}
			clog.FromContext(ctx).With("file", in.Filename).With("lines", len(lines)).Debug("Read file")
			out := make([]string, 0, len(lines))
			for _, l := range lines {
				out = append(out, l.String())
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	edit, err := toolcall.New(toolcall.EditFileReplaceLines,
		"Edit an existing file by replacing the lines from starting_line to ending_line (1-indexed, inclusive) with replacement_lines. A missing file is created with the replacement lines.",
		func(ctx context.Context, in EditInput) (any, error) {
			replacement := splitReplacement(in.ReplacementLines)
			if err := ws.ReplaceLines(in.Filename, deref(in.StartingLine), deref(in.EndingLine), replacement); err != nil {
				return nil, err
			}
			clog.FromContext(ctx).With("file", in.Filename).With("lines", len(replacement)).Debug("Edited file")
			return fmt.Sprintf("Successfully edited file %s", in.Filename), nil
		})
	if err != nil {
		return nil, err
	}

	create, err := toolcall.New(toolcall.CreateFile,
		"Create a new file at a path relative to the repository root. Rust files are exported with a pub mod line in the sibling lib.rs or mod.rs unless include_as_rust_pub_mod is false.",
		func(_ context.Context, in CreateInput) (any, error) {
			pubMod := in.IncludeAsRustPubMod == nil || *in.IncludeAsRustPubMod
			return ws.Create(in.Path, in.Content, pubMod)
		})
	if err != nil {
		return nil, err
	}
	return []toolcall.Handler{read, edit, create}, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// splitReplacement flattens replacement lines that themselves carry
// newlines, which models produce when they send a block as one element.
func splitReplacement(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSuffix(l, "\n")
		out = append(out, strings.Split(l, "\n")...)
	}
	return out
}
