/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import "fmt"

// Kind identifies one tool in the closed set the agent knows about.
type Kind int

const (
	KindUnknown Kind = iota
	CargoCheck
	FullTextRepoSearch
	ReadFile
	EditFileReplaceLines
	CreateFile
	FindRustFunctionExact
	GetGitDiff
	GitAdd
	CommitAndPushChanges
	CreateFreshBranch
	CreatePR
	RespondToPRComment
	GetGitIssues
	GetGitIssueByNumber
	GetMyActivePullRequests

	kindEnd
)

var kindNames = [...]string{
	KindUnknown:             "",
	CargoCheck:              "cargo_check",
	FullTextRepoSearch:      "full_text_repo_search",
	ReadFile:                "read_file",
	EditFileReplaceLines:    "edit_file_replace_lines",
	CreateFile:              "create_file",
	FindRustFunctionExact:   "find_rust_function_exact",
	GetGitDiff:              "get_git_diff",
	GitAdd:                  "git_add",
	CommitAndPushChanges:    "commit_and_push_changes",
	CreateFreshBranch:       "create_fresh_branch",
	CreatePR:                "create_pr",
	RespondToPRComment:      "respond_to_pr_comment",
	GetGitIssues:            "get_git_issues",
	GetGitIssueByNumber:     "get_git_issue_by_number",
	GetMyActivePullRequests: "get_my_active_pull_requests",
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindEnd-1)
	for k := KindUnknown + 1; k < kindEnd; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k names a tool.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindEnd
}

// Name returns the wire name the model uses to invoke the tool.
func (k Kind) Name() string {
	if !k.Valid() {
		return ""
	}
	return kindNames[k]
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name back to its kind.
func ParseKind(name string) (Kind, bool) {
	for k := KindUnknown + 1; k < kindEnd; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindUnknown, false
}
