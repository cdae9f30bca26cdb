/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder_test

import (
	"strings"
	"testing"

	"chainguard.dev/devloop/agents/promptbuilder"
	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	type repo struct {
		Owner string `json:"owner" yaml:"owner" xml:"owner"`
		Name  string `json:"name" yaml:"name" xml:"name"`
	}
	r := repo{Owner: "redgold-io", Name: "redgold"}

	p := promptbuilder.MustNewPrompt("{{lit}}|{{js}}|{{yml}}|{{x}}|{{lit}}")
	p = p.MustBindStringLiteral("lit", "L").
		MustBindJSON("js", r).
		MustBindYAML("yml", r).
		MustBindXML("x", r)

	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := "L|{\n  \"owner\": \"redgold-io\",\n  \"name\": \"redgold\"\n}|owner: redgold-io\nname: redgold|" +
		"<repo>\n  <owner>redgold-io</owner>\n  <name>redgold</name>\n</repo>|L"
	if got != want {
		t.Errorf("Build: got = %q, wanted = %q", got, want)
	}
}

func TestBindingErrors(t *testing.T) {
	p := promptbuilder.MustNewPrompt("Issue: {{issue}}")

	if _, err := p.Build(); err == nil || !strings.Contains(err.Error(), "issue") {
		t.Errorf("Build() unbound error = %v", err)
	}
	if _, err := p.BindStringLiteral("missing", "x"); err == nil {
		t.Error("binding an unknown placeholder: error = nil")
	}

	bound := p.MustBindStringLiteral("issue", "#42")
	if _, err := bound.BindStringLiteral("issue", "#43"); err == nil {
		t.Error("rebinding: error = nil")
	}

	// The original prompt is unchanged.
	if diff := cmp.Diff([]string{"issue"}, p.Unbound()); diff != "" {
		t.Errorf("Unbound() mismatch (-want +got):\n%s", diff)
	}
	if got := bound.Unbound(); len(got) != 0 {
		t.Errorf("Unbound: got = %v, wanted none", got)
	}

	bad := promptbuilder.MustNewPrompt("{{v}}").MustBindJSON("v", make(chan int))
	if _, err := bad.Build(); err == nil {
		t.Error("Build() with unmarshalable value: error = nil")
	}
}

func TestNoTransitiveSubstitution(t *testing.T) {
	p := promptbuilder.MustNewPrompt("{{a}} {{b}}").
		MustBindFenced("a", "{{b}}").
		MustBindStringLiteral("b", "B")
	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if want := "```\n{{b}}\n``` B"; got != want {
		t.Errorf("Build: got = %q, wanted = %q", got, want)
	}
}

func TestBindFenced(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{{
		name: "plain",
		text: "panic in src/lib.rs\n",
		want: "```\npanic in src/lib.rs\n```",
	}, {
		name: "contains a fence",
		text: "Repro:\n```rust\nfn main() {}\n```",
		want: "````\nRepro:\n```rust\nfn main() {}\n```\n````",
	}, {
		name: "long run",
		text: "``````",
		want: "```````\n``````\n```````",
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := promptbuilder.MustNewPrompt("{{body}}").MustBindFenced("body", tt.text).Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Build: got = %q, wanted = %q", got, tt.want)
			}
		})
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNewPrompt() did not panic")
		}
	}()
	promptbuilder.MustNewPrompt("{{oops")
}
