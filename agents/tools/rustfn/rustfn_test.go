/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rustfn

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/devloop/agents/tools/search"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const relay = `use std::fmt;

pub fn check_rate_limit(n: u32) -> bool {
    n < 10
}

pub struct Relay<T> {
    inner: T,
}

impl<T> Relay<T> {
    pub fn new(inner: T) -> Self {
        Relay { inner }
    }

    fn check_rate_limit(&self) -> bool {
        true
    }
}

impl Default for Relay<()> {
    fn default() -> Self {
        Relay::new(())
    }
}

impl fmt::Display for crate::core::Relay<u8> {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {
        write!(f, "relay")
    }
}
`

func TestExtract(t *testing.T) {
	got, err := Extract(context.Background(), "src/relay.rs", []byte(relay))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []Function{
		{Name: "check_rate_limit", StartLine: 3, EndLine: 5},
		{Name: "new", Impl: "Relay", StartLine: 12, EndLine: 14},
		{Name: "check_rate_limit", Impl: "Relay", StartLine: 16, EndLine: 18},
		{Name: "default", Impl: "Relay", Trait: "Default", StartLine: 22, EndLine: 24},
		{Name: "fmt", Impl: "Relay", Trait: "Display", StartLine: 28, EndLine: 30},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Function{}, "File", "Content")); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(got[1].Content, "pub fn new(inner: T) -> Self {") || !strings.HasSuffix(got[1].Content, "}") {
		t.Errorf("content: got = %q", got[1].Content)
	}
}

func TestFunctionString(t *testing.T) {
	f := Function{
		File:      "src/relay.rs",
		Name:      "default",
		Impl:      "Relay",
		Trait:     "Default",
		StartLine: 22,
		EndLine:   24,
		Content:   "fn default() -> Self {\n    Relay::new(())\n}",
	}
	want := "src/relay.rs L22-24 Relay::default Default\nfn default() -> Self {\n    Relay::new(())\n}"
	if got := f.String(); got != want {
		t.Errorf("String(): got = %q, wanted = %q", got, want)
	}
	f.Impl, f.Trait = "", ""
	if got := f.ScopedName(); got != "default" {
		t.Errorf("ScopedName(): got = %q, wanted = %q", got, "default")
	}
}

type dirWorkspace string

func (d dirWorkspace) Root() string { return string(d) }

func (d dirWorkspace) Resolve(rel string) (string, error) {
	full := filepath.Join(string(d), rel)
	if r, err := filepath.Rel(string(d), full); err != nil || strings.HasPrefix(r, "..") {
		return "", errors.New("escapes root")
	}
	return full, nil
}

func newFinder(t *testing.T) *Finder {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"src/core/relay.rs": relay,
		"src/other.rs":      "fn new() {}\n",
		"target/gen.rs":     "fn new() {}\n",
		"README.md":         "fn new() {}\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	f, err := NewFinder(dirWorkspace(root), search.DefaultScanConfig())
	if err != nil {
		t.Fatalf("NewFinder() error = %v", err)
	}
	return f
}

func TestFind(t *testing.T) {
	f := newFinder(t)

	type found struct {
		File  string
		Scope string
	}
	for _, tt := range []struct {
		name  string
		query Query
		want  []found
	}{{
		name:  "all files",
		query: Query{Name: "new"},
		want:  []found{{"src/core/relay.rs", "Relay::new"}, {"src/other.rs", "new"}},
	}, {
		name:  "restricted to a path",
		query: Query{Name: "new", Path: "src/other.rs"},
		want:  []found{{"src/other.rs", "new"}},
	}, {
		name:  "impl filter",
		query: Query{Name: "check_rate_limit", Impl: "Relay"},
		want:  []found{{"src/core/relay.rs", "Relay::check_rate_limit"}},
	}, {
		name:  "trait filter",
		query: Query{Name: "fmt", Traits: []string{"Debug", "Display"}},
		want:  []found{{"src/core/relay.rs", "Relay::fmt"}},
	}, {
		name:  "trait filter excludes inherent methods",
		query: Query{Name: "new", Traits: []string{"Default"}},
	}, {
		name:  "no match",
		query: Query{Name: "missing"},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			fns, err := f.Find(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			var got []found
			for _, fn := range fns {
				got = append(got, found{fn.File, fn.ScopedName()})
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Find() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := f.Find(context.Background(), Query{Name: " "}); err == nil {
		t.Error("Find(blank name) error = nil, wanted an error")
	}
	if _, err := f.Find(context.Background(), Query{Name: "new", Path: "../x.rs"}); err == nil {
		t.Error("Find(escaping path) error = nil, wanted an error")
	}
}

func TestTool(t *testing.T) {
	h, err := newFinder(t).Tool()
	if err != nil {
		t.Fatalf("Tool() error = %v", err)
	}
	got, err := h.Execute(context.Background(), json.RawMessage(`{"name":"default","trait":["Default"]}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := []string{"src/core/relay.rs L22-24 Relay::default Default\nfn default() -> Self {\n        Relay::new(())\n    }"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Execute() mismatch (-want +got):\n%s", diff)
	}

	got, err = h.Execute(context.Background(), json.RawMessage(`{"name":"nope"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "No function named nope found" {
		t.Errorf("no match: got = %v, wanted = %v", got, "No function named nope found")
	}
}
