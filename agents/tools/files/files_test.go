/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package files_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chainguard.dev/devloop/agents/toolcall"
	"chainguard.dev/devloop/agents/tools/files"
	"chainguard.dev/devloop/agents/workspace"
	gogit "github.com/go-git/go-git/v5"
	"github.com/google/go-cmp/cmp"
)

func newTools(t *testing.T) (map[toolcall.Kind]toolcall.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	if _, err := gogit.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte("pub mod a;\nfn x() {}\nfn y() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ws, err := workspace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	handlers, err := files.Tools(ws)
	if err != nil {
		t.Fatalf("Tools() error = %v", err)
	}
	byKind := make(map[toolcall.Kind]toolcall.Handler, len(handlers))
	for _, h := range handlers {
		byKind[h.Kind()] = h
	}
	return byKind, dir
}

func TestToolsKinds(t *testing.T) {
	tools, _ := newTools(t)
	for _, k := range []toolcall.Kind{toolcall.ReadFile, toolcall.EditFileReplaceLines, toolcall.CreateFile} {
		if _, ok := tools[k]; !ok {
			t.Errorf("missing handler for %v", k)
		}
	}
	if diff := cmp.Diff([]string{"filename", "starting_line", "ending_line"}, tools[toolcall.EditFileReplaceLines].Definition().Required()); diff != "" {
		t.Errorf("edit required fields mismatch (-want +got):\n%s", diff)
	}
	if _, err := files.Tools(nil); err == nil {
		t.Error("Tools(nil) error = nil, wanted an error")
	}
}

func TestReadFile(t *testing.T) {
	tools, _ := newTools(t)
	h := tools[toolcall.ReadFile]

	for _, tt := range []struct {
		name  string
		input string
		want  []string
	}{{
		name:  "whole file",
		input: `{"filename":"src/lib.rs"}`,
		want:  []string{"1: pub mod a;", "2: fn x() {}", "3: fn y() {}"},
	}, {
		name:  "range",
		input: `{"filename":"src/lib.rs","starting_line":2,"ending_line":2}`,
		want:  []string{"2: fn x() {}"},
	}, {
		name:  "open ended",
		input: `{"filename":"src/lib.rs","starting_line":3}`,
		want:  []string{"3: fn y() {}"},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Execute(context.Background(), json.RawMessage(tt.input))
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Execute() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := h.Execute(context.Background(), json.RawMessage(`{"filename":"../../etc/passwd"}`)); !errors.Is(err, workspace.ErrEscapesRoot) {
		t.Errorf("Execute(escape) error = %v, wanted %v", err, workspace.ErrEscapesRoot)
	}
	if _, err := h.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("Execute(missing filename) error = nil, wanted a validation error")
	}
}

func TestEditFileReplaceLines(t *testing.T) {
	tools, dir := newTools(t)
	h := tools[toolcall.EditFileReplaceLines]

	got, err := h.Execute(context.Background(), json.RawMessage(
		`{"filename":"src/lib.rs","starting_line":2,"ending_line":2,"replacement_lines":["fn x() {\n    todo!()\n}"]}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if want := "Successfully edited file src/lib.rs"; got != want {
		t.Errorf("result: got = %v, wanted = %v", got, want)
	}
	b, err := os.ReadFile(filepath.Join(dir, "src", "lib.rs"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "pub mod a;\nfn x() {\n    todo!()\n}\nfn y() {}\n"; string(b) != want {
		t.Errorf("content: got = %q, wanted = %q", b, want)
	}
}

func TestCreateFile(t *testing.T) {
	tools, dir := newTools(t)
	h := tools[toolcall.CreateFile]

	if _, err := h.Execute(context.Background(), json.RawMessage(
		`{"repository_relative_path":"src/b.rs","content":"pub fn b() {}\n"}`)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := h.Execute(context.Background(), json.RawMessage(
		`{"repository_relative_path":"src/c.rs","content":"","include_as_rust_pub_mod":false}`)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "src", "lib.rs"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "pub mod a;\nfn x() {}\nfn y() {}\n\npub mod b;\n"; string(b) != want {
		t.Errorf("lib.rs: got = %q, wanted = %q", b, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "c.rs")); err != nil {
		t.Errorf("c.rs was not created: %v", err)
	}
}
