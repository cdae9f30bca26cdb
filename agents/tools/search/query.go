/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package search

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultResults is how many hits a query returns when unspecified.
	DefaultResults = 10
	// DefaultContextLines is how many lines around a hit are shown.
	DefaultContextLines = 2

	highlightOpen  = "[["
	highlightClose = "]]"
)

// Line is one numbered line of context around a hit.
type Line struct {
	Number int
	Text   string
}

// Hit is one matching line.
type Hit struct {
	Path      string
	Line      int
	Highlight string
	Context   []Line
}

// String renders the hit the way the model sees it.
func (h Hit) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match at line %d in file %s:\n", h.Line, h.Path)
	for _, l := range h.Context {
		prefix := "    "
		if l.Number == h.Line {
			prefix = "  > "
		}
		fmt.Fprintf(&b, "%s%d: %s\n", prefix, l.Number, l.Text)
	}
	fmt.Fprintf(&b, "\nHighlighted: %s", h.Highlight)
	return b.String()
}

// Search returns up to limit lines matching query, best first, each with
// contextLines lines of surrounding context.
func (ix *Index) Search(ctx context.Context, query string, limit, contextLines int) ([]Hit, error) {
	match := sanitizeQuery(query)
	if match == "" {
		return nil, fmt.Errorf("query %q has no searchable terms", query)
	}
	if limit <= 0 {
		limit = DefaultResults
	}
	if contextLines < 0 {
		contextLines = 0
	}

	var files int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&files); err != nil {
		return nil, fmt.Errorf("checking index: %w", err)
	}
	if files == 0 {
		return nil, ErrNoIndex
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT path, number, highlight(lines_fts, 0, ?, ?)
		FROM lines_fts
		WHERE lines_fts MATCH ?
		ORDER BY rank, path, number
		LIMIT ?`, highlightOpen, highlightClose, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Line, &h.Highlight); err != nil {
			rows.Close()
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range hits {
		c, err := ix.context(ctx, hits[i].Path, hits[i].Line-contextLines, hits[i].Line+contextLines)
		if err != nil {
			return nil, err
		}
		hits[i].Context = c
	}
	return hits, nil
}

func (ix *Index) context(ctx context.Context, path string, from, to int) ([]Line, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT number, text FROM lines WHERE path = ? AND number BETWEEN ? AND ? ORDER BY number`,
		path, max(from, 1), to)
	if err != nil {
		return nil, fmt.Errorf("reading context of %s: %w", path, err)
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.Number, &l.Text); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// sanitizeQuery quotes each whitespace separated term so that punctuation
// common in code, like `::` or `.`, cannot break FTS5 query syntax. Terms
// are joined with OR and ranking puts lines matching more terms first.
func sanitizeQuery(query string) string {
	words := strings.Fields(query)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
