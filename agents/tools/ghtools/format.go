/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ghtools

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v84/github"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatIssueBrief renders the one-line form of an issue:
// STATE - USER - NUMBER - TITLE - #label ...
func FormatIssueBrief(is *github.Issue) string {
	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, "#"+l.GetName())
	}
	return fmt.Sprintf("%s - %s - %d - %s - %s",
		is.GetState(), is.GetUser().GetLogin(), is.GetNumber(), is.GetTitle(), strings.Join(labels, " "))
}

// FormatIssue renders the brief line followed by the body and timestamps.
func FormatIssue(is *github.Issue) string {
	var b strings.Builder
	b.WriteString(FormatIssueBrief(is))
	b.WriteByte('\n')
	b.WriteString(is.GetBody())
	b.WriteByte('\n')
	fmt.Fprintf(&b, "created_at: %s, updated_at: %s\n",
		is.GetCreatedAt().UTC().Format(timeLayout), is.GetUpdatedAt().UTC().Format(timeLayout))
	return b.String()
}

func (pr PullRequest) String() string {
	status := "No status checks"
	if pr.Status != "" {
		status = pr.Status
	}
	body := pr.Body
	if body == "" {
		body = "No description provided"
	}
	lines := []string{
		fmt.Sprintf("PR #%d: %s", pr.Number, pr.Title),
		"Status: " + status,
		"Created by: " + pr.Author,
		fmt.Sprintf("Branch: %s → %s", pr.Head, pr.Base),
		"",
		"Description:",
		body,
		"",
	}
	if len(pr.Comments) == 0 {
		lines = append(lines, "No comments")
	} else {
		lines = append(lines, "Comments:")
		for _, c := range pr.Comments {
			lines = append(lines, fmt.Sprintf("  %s: %s", c.Author, c.Body))
		}
	}
	return strings.Join(lines, "\n")
}
