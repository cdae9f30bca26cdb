/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package ghtools reads issues and pull requests of the target repository
// and opens or comments on pull requests on the agent's behalf.
package ghtools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/workspace"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
)

// ErrNoIssue is returned when no open issue carries the requested label.
var ErrNoIssue = errors.New("no matching open issue")

// DefaultLogin is the account whose pull requests are listed.
const DefaultLogin = "redgold-ai"

// Branches is the part of the workspace pull request creation needs.
type Branches interface {
	CurrentBranch() (string, error)
	Protected(branch string) bool
	BaseBranch() string
}

// Client talks to one GitHub repository.
type Client struct {
	gh    *github.Client
	gql   *githubv4.Client
	owner string
	repo  string
	login string
	ws    Branches
}

// Option configures a Client.
type Option func(*Client) error

// WithLogin sets the account whose open pull requests are listed.
func WithLogin(login string) Option {
	return func(c *Client) error {
		if login == "" {
			return errors.New("login cannot be empty")
		}
		c.login = login
		return nil
	}
}

// WithBranches enables pull request creation from the workspace's current
// branch.
func WithBranches(ws Branches) Option {
	return func(c *Client) error {
		c.ws = ws
		return nil
	}
}

// WithGraphQLClient overrides the GraphQL client derived from the REST
// client's transport.
func WithGraphQLClient(gql *githubv4.Client) Option {
	return func(c *Client) error {
		c.gql = gql
		return nil
	}
}

// New creates a Client for owner/repo.
func New(gh *github.Client, owner, repo string, opts ...Option) (*Client, error) {
	if gh == nil {
		return nil, errors.New("github client cannot be nil")
	}
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repo are required")
	}
	c := &Client{
		gh:    gh,
		gql:   githubv4.NewClient(gh.Client()),
		owner: owner,
		repo:  repo,
		login: DefaultLogin,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return c, nil
}

// Issues lists the open issues, excluding pull requests. When label is set
// only issues carrying it are returned.
func (c *Client) Issues(ctx context.Context, label string) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if label != "" {
		opts.Labels = []string{label}
	}
	var out []*github.Issue
	for {
		page, resp, err := c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues of %s/%s: %w", c.owner, c.repo, err)
		}
		for _, is := range page {
			if !is.IsPullRequest() {
				out = append(out, is)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return out, nil
}

// Issue fetches one issue.
func (c *Client) Issue(ctx context.Context, number int) (*github.Issue, error) {
	is, _, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting issue #%d: %w", number, err)
	}
	return is, nil
}

// FirstLabeled returns the first open issue carrying label.
func (c *Client) FirstLabeled(ctx context.Context, label string) (*github.Issue, error) {
	issues, err := c.Issues(ctx, label)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, fmt.Errorf("label %q: %w", label, ErrNoIssue)
	}
	return issues[0], nil
}

// CreatePR opens a pull request from the workspace's current branch into
// its base branch.
func (c *Client) CreatePR(ctx context.Context, title, body string) (*github.PullRequest, error) {
	if c.ws == nil {
		return nil, errors.New("pull request creation requires a workspace")
	}
	branch, err := c.ws.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if c.ws.Protected(branch) {
		return nil, fmt.Errorf("opening a pull request from %s: %w", branch, workspace.ErrProtectedBranch)
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(c.ws.BaseBranch()),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request from %s: %w", branch, err)
	}
	clog.FromContext(ctx).With("pr", pr.GetNumber()).With("branch", branch).Info("Created pull request")
	return pr, nil
}

// Comment adds a comment to the conversation of a pull request.
func (c *Client) Comment(ctx context.Context, number int, body string) (*github.IssueComment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("comment cannot be empty")
	}
	comment, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return nil, fmt.Errorf("commenting on #%d: %w", number, err)
	}
	return comment, nil
}

// PullRequest is an open pull request with its checks and conversation.
type PullRequest struct {
	Number   int
	Title    string
	Body     string
	Author   string
	Head     string
	Base     string
	Status   string
	Comments []Comment
}

// Comment is one conversation entry of a pull request.
type Comment struct {
	Author string
	Body   string
}

// ActivePullRequests lists the open pull requests authored by the
// configured login.
func (c *Client) ActivePullRequests(ctx context.Context) ([]PullRequest, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number      int
					Title       string
					Body        string
					HeadRefName string
					BaseRefName string
					Author      struct {
						Login string
					}
					Commits struct {
						Nodes []struct {
							Commit struct {
								StatusCheckRollup *struct {
									State string
								}
							}
						}
					} `graphql:"commits(last: 1)"`
					Comments struct {
						Nodes []struct {
							Author struct {
								Login string
							}
							Body string
						}
					} `graphql:"comments(first: 100)"`
				}
			} `graphql:"pullRequests(states: [OPEN], first: 100, orderBy: {field: CREATED_AT, direction: DESC})"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner": githubv4.String(c.owner),
		"repo":  githubv4.String(c.repo),
	}
	if err := c.gql.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("querying pull requests: %w", err)
	}

	var out []PullRequest
	for _, n := range query.Repository.PullRequests.Nodes {
		if n.Author.Login != c.login {
			continue
		}
		pr := PullRequest{
			Number: n.Number,
			Title:  n.Title,
			Body:   n.Body,
			Author: n.Author.Login,
			Head:   n.HeadRefName,
			Base:   n.BaseRefName,
		}
		if len(n.Commits.Nodes) > 0 && n.Commits.Nodes[0].Commit.StatusCheckRollup != nil {
			pr.Status = n.Commits.Nodes[0].Commit.StatusCheckRollup.State
		}
		for _, cm := range n.Comments.Nodes {
			pr.Comments = append(pr.Comments, Comment{Author: cm.Author.Login, Body: cm.Body})
		}
		out = append(out, pr)
	}
	return out, nil
}
