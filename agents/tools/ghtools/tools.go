/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ghtools

import (
	"context"
	"fmt"

	"chainguard.dev/devloop/agents/toolcall"
)

// IssueInput is the input of get_git_issue_by_number.
type IssueInput struct {
	Number int `json:"number" jsonschema:"required,minimum=1,description=The number of the issue to get"`
}

// PRInput is the input of create_pr.
type PRInput struct {
	Title string `json:"title" jsonschema:"required,description=The title of the pull request"`
	Body  string `json:"body" jsonschema:"required,description=The body of the pull request"`
}

// CommentInput is the input of respond_to_pr_comment.
type CommentInput struct {
	PRNumber int    `json:"pr_number" jsonschema:"required,minimum=1,description=The number of the pull request to respond to"`
	Response string `json:"response" jsonschema:"required,description=The response to post"`
}

// Tools returns the GitHub handlers. create_pr is only included when the
// client was configured WithBranches.
func (c *Client) Tools() ([]toolcall.Handler, error) {
	builders := []func() (toolcall.Handler, error){
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.GetGitIssues,
				"List the open issues of the repository: state, author, number, title and labels.",
				func(ctx context.Context, _ toolcall.NoInput) (any, error) {
					issues, err := c.Issues(ctx, "")
					if err != nil {
						return nil, err
					}
					if len(issues) == 0 {
						return "No open issues", nil
					}
					out := make([]string, 0, len(issues))
					for _, is := range issues {
						out = append(out, FormatIssueBrief(is))
					}
					return out, nil
				})
		},
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.GetGitIssueByNumber,
				"Get one issue of the repository including its body.",
				func(ctx context.Context, in IssueInput) (any, error) {
					is, err := c.Issue(ctx, in.Number)
					if err != nil {
						return nil, err
					}
					return FormatIssue(is), nil
				})
		},
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.RespondToPRComment,
				"Respond to the conversation on a pull request with a new comment.",
				func(ctx context.Context, in CommentInput) (any, error) {
					cm, err := c.Comment(ctx, in.PRNumber, in.Response)
					if err != nil {
						return nil, err
					}
					return fmt.Sprintf("Successfully responded to PR #%d with comment ID %d", in.PRNumber, cm.GetID()), nil
				})
		},
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.GetMyActivePullRequests,
				fmt.Sprintf("List the open pull requests created by %s with their check status, description and comments.", c.login),
				func(ctx context.Context, _ toolcall.NoInput) (any, error) {
					prs, err := c.ActivePullRequests(ctx)
					if err != nil {
						return nil, err
					}
					if len(prs) == 0 {
						return fmt.Sprintf("No active pull requests found for %s", c.login), nil
					}
					out := make([]string, 0, len(prs))
					for _, pr := range prs {
						out = append(out, pr.String())
					}
					return out, nil
				})
		},
	}
	if c.ws != nil {
		builders = append(builders, func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.CreatePR,
				fmt.Sprintf("Create a pull request from the current branch against %s.", c.ws.BaseBranch()),
				func(ctx context.Context, in PRInput) (any, error) {
					pr, err := c.CreatePR(ctx, in.Title, in.Body)
					if err != nil {
						return nil, err
					}
					return fmt.Sprintf("Successfully created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL()), nil
				})
		})
	}

	handlers := make([]toolcall.Handler, 0, len(builders))
	for _, build := range builders {
		h, err := build()
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}
