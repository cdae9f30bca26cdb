/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-github/v84/github"
)

type fakeLister struct {
	label  string
	issues []*github.Issue
}

func (f *fakeLister) Issues(_ context.Context, label string) ([]*github.Issue, error) {
	f.label = label
	return f.issues, nil
}

func issue(n int, title, body string) *github.Issue {
	ts := &github.Timestamp{Time: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)}
	return &github.Issue{
		Number:    github.Ptr(n),
		State:     github.Ptr("open"),
		Title:     github.Ptr(title),
		Body:      github.Ptr(body),
		User:      &github.User{Login: github.Ptr("alice")},
		Labels:    []*github.Label{{Name: github.Ptr("ai-dev")}},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestRun(t *testing.T) {
	lister := &fakeLister{issues: []*github.Issue{issue(1, "First", "one"), issue(2, "Second", "two")}}

	for _, tt := range []struct {
		name string
		cfg  config
		want string
	}{{
		name: "full",
		cfg:  config{IssueLabel: "ai-dev"},
		want: "open - alice - 1 - First - #ai-dev\none\ncreated_at: 2024-03-04 05:06:07, updated_at: 2024-03-04 05:06:07" +
			divider +
			"open - alice - 2 - Second - #ai-dev\ntwo\ncreated_at: 2024-03-04 05:06:07, updated_at: 2024-03-04 05:06:07\n",
	}, {
		name: "brief",
		cfg:  config{IssueLabel: "ai-dev", Brief: true},
		want: "open - alice - 1 - First - #ai-dev\nopen - alice - 2 - Second - #ai-dev\n",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(context.Background(), &tt.cfg, lister, &out); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if got := out.String(); got != tt.want {
				t.Errorf("run():\ngot  = %q\nwant = %q", got, tt.want)
			}
			if lister.label != "ai-dev" {
				t.Errorf("label: got = %q, wanted = %q", lister.label, "ai-dev")
			}
		})
	}

	var out bytes.Buffer
	if err := run(context.Background(), &config{}, &fakeLister{}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("run() with no issues wrote %q", out.String())
	}
}
