/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main builds or refreshes the full-text index of a workspace and
// optionally runs one query against it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"chainguard.dev/devloop/agents/tools/search"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	WorkspaceRoot string   `env:"WORKSPACE_ROOT,required"`
	SearchDB      string   `env:"SEARCH_DB"` // Defaults to search.DefaultPath(WORKSPACE_ROOT)
	Ignore        []string `env:"SEARCH_IGNORE"`

	// Query runs one search after the refresh.
	Query        string `env:"QUERY"`
	NumResults   int    `env:"NUM_RESULTS,default=10"`
	ContextLines int    `env:"CONTEXT_LINES,default=2"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}
	if err := run(ctx, &cfg, os.Stdout); err != nil {
		clog.FatalContextf(ctx, "devindex failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config, out io.Writer) error {
	db := cfg.SearchDB
	if db == "" {
		var err error
		if db, err = search.DefaultPath(cfg.WorkspaceRoot); err != nil {
			return err
		}
	}
	scan := search.DefaultScanConfig()
	scan.Ignore = cfg.Ignore

	ix, err := search.Open(ctx, db, cfg.WorkspaceRoot, search.WithScanConfig(scan))
	if err != nil {
		return err
	}
	defer ix.Close()

	st, err := ix.Refresh(ctx)
	if err != nil {
		return err
	}
	clog.FromContext(ctx).With("db", db).Info("Index refreshed")
	if err := writeStats(out, st); err != nil {
		return err
	}

	if cfg.Query == "" {
		return nil
	}
	hits, err := ix.Search(ctx, cfg.Query, cfg.NumResults, cfg.ContextLines)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		_, err := fmt.Fprintln(out, "No results found")
		return err
	}
	for _, h := range hits {
		if _, err := fmt.Fprintf(out, "\n%s\n", h); err != nil {
			return err
		}
	}
	return nil
}

func writeStats(w io.Writer, st search.Stats) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Files", "Count"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
	)
	for _, row := range [][]string{
		{"Scanned", strconv.Itoa(st.Scanned)},
		{"Indexed", strconv.Itoa(st.Indexed)},
		{"Unchanged", strconv.Itoa(st.Unchanged)},
		{"Removed", strconv.Itoa(st.Removed)},
		{"Lines", strconv.Itoa(st.Lines)},
	} {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
