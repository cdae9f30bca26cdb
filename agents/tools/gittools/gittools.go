/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gittools provides the tools that inspect and publish the
// workspace's git state.
package gittools

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/devloop/agents/toolcall"
	"chainguard.dev/devloop/agents/workspace"
)

// Workspace is the part of the run context the git tools need.
type Workspace interface {
	Diff(ctx context.Context) (string, error)
	DiffSummary(ctx context.Context) ([]workspace.FileChange, error)
	Add(path string) error
	FreshBranch(ctx context.Context, name string) error
	CommitAndPush(ctx context.Context, message string) (string, error)
	BaseBranch() string
}

// AddInput is the input of git_add.
type AddInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to stage relative to the repository root"`
}

// CommitInput is the input of commit_and_push_changes.
type CommitInput struct {
	Message string `json:"message" jsonschema:"required,description=The commit message"`
}

// BranchInput is the input of create_fresh_branch.
type BranchInput struct {
	BranchName string `json:"branch_name" jsonschema:"required,description=The name of the branch to create"`
}

// Tools returns the get_git_diff, git_add, commit_and_push_changes and
// create_fresh_branch handlers bound to ws.
func Tools(ws Workspace) ([]toolcall.Handler, error) {
	if ws == nil {
		return nil, errors.New("workspace cannot be nil")
	}
	var handlers []toolcall.Handler
	for _, build := range []func() (toolcall.Handler, error){
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.GetGitDiff,
				"Retrieve the current git diff of changes which have not yet been committed.",
				func(ctx context.Context, _ toolcall.NoInput) (any, error) {
					diff, err := ws.Diff(ctx)
					if err != nil {
						return nil, err
					}
					if diff == "" {
						return "No uncommitted changes", nil
					}
					return diff, nil
				})
		},
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.GitAdd,
				"Stage a file so that it is included in the next commit.",
				func(_ context.Context, in AddInput) (any, error) {
					if err := ws.Add(in.FilePath); err != nil {
						return nil, err
					}
					return fmt.Sprintf("Staged %s", in.FilePath), nil
				})
		},
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.CommitAndPushChanges,
				"Commit all changes in the workspace and push them to the current branch. Protected branches are refused.",
				func(ctx context.Context, in CommitInput) (any, error) {
					changes, err := ws.DiffSummary(ctx)
					if err != nil {
						return nil, err
					}
					msg, err := ws.CommitAndPush(ctx, in.Message)
					if err != nil {
						return nil, err
					}
					out := []string{msg}
					for _, c := range changes {
						out = append(out, c.String())
					}
					return out, nil
				})
		},
		func() (toolcall.Handler, error) {
			return toolcall.New(toolcall.CreateFreshBranch,
				fmt.Sprintf("Discard all local changes and create a new branch from the latest %s branch.", ws.BaseBranch()),
				func(ctx context.Context, in BranchInput) (any, error) {
					if err := ws.FreshBranch(ctx, in.BranchName); err != nil {
						return nil, err
					}
					return fmt.Sprintf("Successfully created and checked out fresh branch '%s' from %s", in.BranchName, ws.BaseBranch()), nil
				})
		},
	} {
		h, err := build()
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}
