/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package search

import (
	"context"

	"chainguard.dev/devloop/agents/toolcall"
	"github.com/chainguard-dev/clog"
)

// Input is the input of full_text_repo_search.
type Input struct {
	Query        string `json:"query" jsonschema:"required,description=The text to search for as a programmer would type it into a project-wide find. For example DataStoreContext::map_err_sqlx"`
	NumResults   *int   `json:"num_results,omitempty" jsonschema:"minimum=1,maximum=100,description=Maximum number of matching lines to return. Defaults to 10"`
	ContextLines *int   `json:"context_lines,omitempty" jsonschema:"minimum=0,maximum=50,description=Lines of context shown before and after each match. Defaults to 2"`
}

// Tool returns the full_text_repo_search handler. The index is refreshed
// before every query so results reflect the model's own edits.
func (ix *Index) Tool() (toolcall.Handler, error) {
	return toolcall.New(toolcall.FullTextRepoSearch,
		"Full text search of the repository for code or document snippets. Returns matching lines with surrounding context and line numbers.",
		func(ctx context.Context, in Input) (any, error) {
			st, err := ix.Refresh(ctx)
			if err != nil {
				return nil, err
			}
			limit, lines := DefaultResults, DefaultContextLines
			if in.NumResults != nil {
				limit = *in.NumResults
			}
			if in.ContextLines != nil {
				lines = *in.ContextLines
			}
			hits, err := ix.Search(ctx, in.Query, limit, lines)
			if err != nil {
				return nil, err
			}
			clog.FromContext(ctx).With("query", in.Query).
				With("hits", len(hits)).
				With("reindexed", st.Indexed).
				Info("Searched repository")
			if len(hits) == 0 {
				return "No results found", nil
			}
			out := make([]string, 0, len(hits))
			for _, h := range hits {
				out = append(out, h.String())
			}
			return out, nil
		})
}
