/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ghtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"chainguard.dev/devloop/agents/toolcall"
	"chainguard.dev/devloop/agents/workspace"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
)

type fakeBranches struct {
	current string
}

func (f fakeBranches) CurrentBranch() (string, error) { return f.current, nil }
func (f fakeBranches) Protected(b string) bool        { return b == "dev" || b == "main" }
func (f fakeBranches) BaseBranch() string             { return "dev" }

const issuesPage1 = `[
  {"number": 12, "state": "open", "title": "Add relay metrics", "body": "Expose counters.",
   "user": {"login": "alice"}, "labels": [{"name": "ai-dev"}, {"name": "metrics"}],
   "created_at": "2024-05-01T10:00:00Z", "updated_at": "2024-05-02T11:30:00Z"},
  {"number": 13, "state": "open", "title": "A pull request", "user": {"login": "bob"},
   "pull_request": {"url": "https://api.github.com/repos/o/r/pulls/13"}}
]`

const issuesPage2 = `[
  {"number": 9, "state": "open", "title": "Fix flaky test", "user": {"login": "carol"}, "labels": []}
]`

const pullsQuery = `{"data": {"repository": {"pullRequests": {"nodes": [
  {"number": 40, "title": "Fix #12", "body": "", "headRefName": "ai/issue-12", "baseRefName": "dev",
   "author": {"login": "redgold-ai"},
   "commits": {"nodes": [{"commit": {"statusCheckRollup": {"state": "FAILURE"}}}]},
   "comments": {"nodes": [{"author": {"login": "alice"}, "body": "Please add a test."}]}},
  {"number": 41, "title": "Human PR", "body": "x", "headRefName": "feature", "baseRefName": "dev",
   "author": {"login": "alice"}, "commits": {"nodes": []}, "comments": {"nodes": []}},
  {"number": 42, "title": "Docs", "body": "Update docs.", "headRefName": "ai/docs", "baseRefName": "dev",
   "author": {"login": "redgold-ai"},
   "commits": {"nodes": [{"commit": {"statusCheckRollup": null}}]},
   "comments": {"nodes": []}}
]}}}}`

type server struct {
	*httptest.Server
	created  map[string]any
	comments []string
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("state"); got != "open" {
			t.Errorf("state: got = %q, wanted = %q", got, "open")
		}
		if r.URL.Query().Get("labels") == "none" {
			fmt.Fprint(w, `[]`)
			return
		}
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, issuesPage2)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/issues?page=2>; rel="next"`, s.URL))
		fmt.Fprint(w, issuesPage1)
	})
	mux.HandleFunc("GET /repos/o/r/issues/12", func(w http.ResponseWriter, _ *http.Request) {
		var page []json.RawMessage
		if err := json.Unmarshal([]byte(issuesPage1), &page); err != nil {
			t.Fatal(err)
		}
		w.Write(page[0])
	})
	mux.HandleFunc("POST /repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&s.created); err != nil {
			t.Errorf("decoding pull request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 43, "html_url": "https://github.com/o/r/pull/43"}`)
	})
	mux.HandleFunc("POST /repos/o/r/issues/40/comments", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Body string }
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("decoding comment: %v", err)
		}
		s.comments = append(s.comments, c.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 777}`)
	})
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "pullRequests(states: [OPEN]") {
			t.Errorf("unexpected query: %s", body)
		}
		fmt.Fprint(w, pullsQuery)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newClient(t *testing.T, s *server, opts ...Option) *Client {
	t.Helper()
	gh := github.NewClient(s.Client())
	base, err := url.Parse(s.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	gh.BaseURL = base
	opts = append([]Option{WithGraphQLClient(githubv4.NewEnterpriseClient(s.URL+"/graphql", s.Client()))}, opts...)
	c, err := New(gh, "o", "r", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestFormatIssue(t *testing.T) {
	is := &github.Issue{
		Number:    github.Ptr(12),
		State:     github.Ptr("open"),
		Title:     github.Ptr("Add relay metrics"),
		Body:      github.Ptr("Expose counters."),
		User:      &github.User{Login: github.Ptr("alice")},
		Labels:    []*github.Label{{Name: github.Ptr("ai-dev")}, {Name: github.Ptr("metrics")}},
		CreatedAt: &github.Timestamp{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		UpdatedAt: &github.Timestamp{Time: time.Date(2024, 5, 2, 11, 30, 0, 0, time.UTC)},
	}
	if got, want := FormatIssueBrief(is), "open - alice - 12 - Add relay metrics - #ai-dev #metrics"; got != want {
		t.Errorf("FormatIssueBrief(): got = %q, wanted = %q", got, want)
	}
	want := "open - alice - 12 - Add relay metrics - #ai-dev #metrics\n" +
		"Expose counters.\n" +
		"created_at: 2024-05-01 10:00:00, updated_at: 2024-05-02 11:30:00\n"
	if got := FormatIssue(is); got != want {
		t.Errorf("FormatIssue(): got = %q, wanted = %q", got, want)
	}
}

func TestIssuesPaginatesAndSkipsPullRequests(t *testing.T) {
	c := newClient(t, newServer(t))
	issues, err := c.Issues(context.Background(), "")
	if err != nil {
		t.Fatalf("Issues() error = %v", err)
	}
	var got []int
	for _, is := range issues {
		got = append(got, is.GetNumber())
	}
	if diff := cmp.Diff([]int{12, 9}, got); diff != "" {
		t.Errorf("Issues() mismatch (-want +got):\n%s", diff)
	}
}

func TestFirstLabeled(t *testing.T) {
	c := newClient(t, newServer(t))
	is, err := c.FirstLabeled(context.Background(), "ai-dev")
	if err != nil {
		t.Fatalf("FirstLabeled() error = %v", err)
	}
	if is.GetNumber() != 12 {
		t.Errorf("number: got = %d, wanted = 12", is.GetNumber())
	}
	if _, err := c.FirstLabeled(context.Background(), "none"); !errors.Is(err, ErrNoIssue) {
		t.Errorf("FirstLabeled(none) error = %v, wanted %v", err, ErrNoIssue)
	}
}

func TestActivePullRequests(t *testing.T) {
	c := newClient(t, newServer(t))
	prs, err := c.ActivePullRequests(context.Background())
	if err != nil {
		t.Fatalf("ActivePullRequests() error = %v", err)
	}
	want := []PullRequest{{
		Number:   40,
		Title:    "Fix #12",
		Author:   "redgold-ai",
		Head:     "ai/issue-12",
		Base:     "dev",
		Status:   "FAILURE",
		Comments: []Comment{{Author: "alice", Body: "Please add a test."}},
	}, {
		Number: 42,
		Title:  "Docs",
		Body:   "Update docs.",
		Author: "redgold-ai",
		Head:   "ai/docs",
		Base:   "dev",
	}}
	if diff := cmp.Diff(want, prs); diff != "" {
		t.Errorf("ActivePullRequests() mismatch (-want +got):\n%s", diff)
	}

	wantText := "PR #40: Fix #12\nStatus: FAILURE\nCreated by: redgold-ai\nBranch: ai/issue-12 → dev\n\n" +
		"Description:\nNo description provided\n\nComments:\n  alice: Please add a test."
	if got := prs[0].String(); got != wantText {
		t.Errorf("String():\ngot  = %q\nwant = %q", got, wantText)
	}
	if got := prs[1].String(); !strings.Contains(got, "Status: No status checks") || !strings.HasSuffix(got, "No comments") {
		t.Errorf("String() = %q, wanted the no-checks and no-comments forms", got)
	}
}

func TestTools(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	readOnly := newClient(t, s)
	hs, err := readOnly.Tools()
	if err != nil {
		t.Fatalf("Tools() error = %v", err)
	}
	if len(hs) != 4 {
		t.Errorf("handlers without a workspace: got = %d, wanted = 4", len(hs))
	}

	c := newClient(t, s, WithBranches(fakeBranches{current: "ai/issue-12"}), WithLogin("redgold-ai"))
	hs, err = c.Tools()
	if err != nil {
		t.Fatalf("Tools() error = %v", err)
	}
	byKind := make(map[toolcall.Kind]toolcall.Handler, len(hs))
	for _, h := range hs {
		byKind[h.Kind()] = h
	}

	got, err := byKind[toolcall.GetGitIssues].Execute(ctx, nil)
	if err != nil {
		t.Fatalf("get_git_issues error = %v", err)
	}
	if diff := cmp.Diff([]string{
		"open - alice - 12 - Add relay metrics - #ai-dev #metrics",
		"open - carol - 9 - Fix flaky test - ",
	}, got); diff != "" {
		t.Errorf("get_git_issues mismatch (-want +got):\n%s", diff)
	}

	got, err = byKind[toolcall.GetGitIssueByNumber].Execute(ctx, json.RawMessage(`{"number":12}`))
	if err != nil {
		t.Fatalf("get_git_issue_by_number error = %v", err)
	}
	if s, ok := got.(string); !ok || !strings.HasPrefix(s, "open - alice - 12 - Add relay metrics") {
		t.Errorf("get_git_issue_by_number: got = %v", got)
	}

	got, err = byKind[toolcall.CreatePR].Execute(ctx, json.RawMessage(`{"title":"Fix #12","body":"Closes #12"}`))
	if err != nil {
		t.Fatalf("create_pr error = %v", err)
	}
	if want := "Successfully created PR #43: https://github.com/o/r/pull/43"; got != want {
		t.Errorf("create_pr: got = %v, wanted = %v", got, want)
	}
	if diff := cmp.Diff(map[string]any{
		"title": "Fix #12", "head": "ai/issue-12", "base": "dev", "body": "Closes #12",
	}, s.created); diff != "" {
		t.Errorf("pull request payload mismatch (-want +got):\n%s", diff)
	}

	got, err = byKind[toolcall.RespondToPRComment].Execute(ctx, json.RawMessage(`{"pr_number":40,"response":"Added a test."}`))
	if err != nil {
		t.Fatalf("respond_to_pr_comment error = %v", err)
	}
	if want := "Successfully responded to PR #40 with comment ID 777"; got != want {
		t.Errorf("respond_to_pr_comment: got = %v, wanted = %v", got, want)
	}
	if diff := cmp.Diff([]string{"Added a test."}, s.comments); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}

	got, err = byKind[toolcall.GetMyActivePullRequests].Execute(ctx, nil)
	if err != nil {
		t.Fatalf("get_my_active_pull_requests error = %v", err)
	}
	if prs, ok := got.([]string); !ok || len(prs) != 2 {
		t.Errorf("get_my_active_pull_requests: got = %v, wanted two entries", got)
	}
}

func TestCreatePRFromProtectedBranch(t *testing.T) {
	c := newClient(t, newServer(t), WithBranches(fakeBranches{current: "dev"}))
	if _, err := c.CreatePR(context.Background(), "t", "b"); !errors.Is(err, workspace.ErrProtectedBranch) {
		t.Errorf("CreatePR() error = %v, wanted %v", err, workspace.ErrProtectedBranch)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "o", "r"); err == nil {
		t.Error("New(nil client) error = nil, wanted an error")
	}
	if _, err := New(github.NewClient(nil), "", "r"); err == nil {
		t.Error("New(empty owner) error = nil, wanted an error")
	}
	if _, err := New(github.NewClient(nil), "o", "r", WithLogin("")); err == nil {
		t.Error("New(WithLogin(\"\")) error = nil, wanted an error")
	}
}
