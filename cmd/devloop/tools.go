/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"

	"chainguard.dev/devloop/agents/toolcall"
	"chainguard.dev/devloop/agents/tools/cargo"
	"chainguard.dev/devloop/agents/tools/files"
	"chainguard.dev/devloop/agents/tools/ghtools"
	"chainguard.dev/devloop/agents/tools/gittools"
	"chainguard.dev/devloop/agents/tools/rustfn"
	"chainguard.dev/devloop/agents/tools/search"
	"chainguard.dev/devloop/agents/workspace"
)

// toolset is the registry of every tool the agent may call, plus the
// search index the handlers hold open.
type toolset struct {
	registry *toolcall.Registry
	index    *search.Index
}

func (t *toolset) Close() error {
	return t.index.Close()
}

func newToolset(ctx context.Context, ws *workspace.Workspace, gh *ghtools.Client, dbPath string) (_ *toolset, err error) {
	ix, err := search.Open(ctx, dbPath, ws.Root())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			ix.Close()
		}
	}()

	checker, err := cargo.New(ws)
	if err != nil {
		return nil, err
	}
	finder, err := rustfn.NewFinder(ws, search.DefaultScanConfig())
	if err != nil {
		return nil, err
	}

	var handlers []toolcall.Handler
	for _, build := range []func() (toolcall.Handler, error){checker.Tool, ix.Tool, finder.Tool} {
		h, err := build()
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	for _, build := range []func() ([]toolcall.Handler, error){
		func() ([]toolcall.Handler, error) { return files.Tools(ws) },
		func() ([]toolcall.Handler, error) { return gittools.Tools(ws) },
		gh.Tools,
	} {
		hs, err := build()
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, hs...)
	}

	registry, err := toolcall.NewRegistry(handlers...)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}
	return &toolset{registry: registry, index: ix}, nil
}
