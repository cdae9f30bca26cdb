/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"os"

	"chainguard.dev/devloop/agents/prompts"
	"chainguard.dev/devloop/agents/tools/ghtools"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// issueSource is the part of the GitHub client the task lookup needs.
type issueSource interface {
	Issue(ctx context.Context, number int) (*github.Issue, error)
	FirstLabeled(ctx context.Context, label string) (*github.Issue, error)
}

// seedTask returns the first user message of the run and the number of the
// issue it came from, if any. TASK wins over ISSUE_NUMBER, which wins over
// the first issue labelled ISSUE_LABEL. Unsupervised runs without a TASK
// start from the unsupervised seed.
func seedTask(ctx context.Context, cfg *config, issues issueSource) (string, int, error) {
	if cfg.Task != "" {
		return cfg.Task, 0, nil
	}
	if cfg.Mode == modeUnsupervised {
		return prompts.UnsupervisedSeed, 0, nil
	}

	var (
		is  *github.Issue
		err error
	)
	if cfg.IssueNumber > 0 {
		is, err = issues.Issue(ctx, cfg.IssueNumber)
	} else {
		is, err = issues.FirstLabeled(ctx, cfg.IssueLabel)
	}
	if err != nil {
		return "", 0, fmt.Errorf("selecting task issue: %w", err)
	}
	clog.FromContext(ctx).With("issue", is.GetNumber()).With("title", is.GetTitle()).Info("Selected task issue")
	task, err := prompts.Task(ghtools.FormatIssue(is))
	return task, is.GetNumber(), err
}

// systemPrompt returns the SYSTEM_PROMPT_FILE contents or the built-in
// prompt for the mode.
func systemPrompt(cfg *config, root string) (string, error) {
	if cfg.SystemPromptFile != "" {
		b, err := os.ReadFile(cfg.SystemPromptFile)
		if err != nil {
			return "", fmt.Errorf("reading system prompt: %w", err)
		}
		return string(b), nil
	}
	repo := prompts.Repository{
		Owner:      cfg.Owner,
		Name:       cfg.Repo,
		BaseBranch: cfg.BaseBranch,
		Workspace:  root,
		Language:   "rust",
	}
	if cfg.Mode == modeUnsupervised {
		return prompts.Unsupervised(repo)
	}
	return prompts.System(repo)
}
