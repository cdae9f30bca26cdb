/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package rustfn locates Rust function definitions by exact name using the
// tree-sitter Rust grammar, and provides the find_rust_function_exact tool.
package rustfn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"chainguard.dev/devloop/agents/toolcall"
	"chainguard.dev/devloop/agents/tools/search"
	"github.com/chainguard-dev/clog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Function is one function definition.
type Function struct {
	File string
	Name string
	// Impl is the implementing type when the function is a method.
	Impl string
	// Trait is the implemented trait, for methods of trait impls.
	Trait     string
	StartLine int
	EndLine   int
	Content   string
}

// ScopedName is Impl::Name for methods and Name otherwise.
func (f Function) ScopedName() string {
	if f.Impl == "" {
		return f.Name
	}
	return f.Impl + "::" + f.Name
}

// String renders a header line with the line span, scoped name and trait,
// followed by the source of the function.
func (f Function) String() string {
	header := fmt.Sprintf("L%d-%d %s", f.StartLine, f.EndLine, f.ScopedName())
	if f.Trait != "" {
		header += " " + f.Trait
	}
	return fmt.Sprintf("%s %s\n%s", f.File, header, f.Content)
}

// Extract returns every function defined at the top level of src or inside
// one of its top-level impl blocks.
func Extract(ctx context.Context, file string, src []byte) ([]Function, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(rust.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	defer tree.Close()

	var out []Function
	root := tree.RootNode()
	for i := range int(root.NamedChildCount()) {
		n := root.NamedChild(i)
		switch n.Type() {
		case "function_item":
			out = append(out, function(file, src, n, "", ""))
		case "impl_item":
			impl := typeName(n.ChildByFieldName("type"), src)
			trait := typeName(n.ChildByFieldName("trait"), src)
			body := n.ChildByFieldName("body")
			if body == nil {
				continue
			}
			for j := range int(body.NamedChildCount()) {
				if m := body.NamedChild(j); m.Type() == "function_item" {
					out = append(out, function(file, src, m, impl, trait))
				}
			}
		}
	}
	return out, nil
}

func function(file string, src []byte, n *sitter.Node, impl, trait string) Function {
	name := ""
	if id := n.ChildByFieldName("name"); id != nil {
		name = id.Content(src)
	}
	return Function{
		File:      file,
		Name:      name,
		Impl:      impl,
		Trait:     trait,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Content:   n.Content(src),
	}
}

// typeName strips generic arguments and module paths from a type node, so
// that `impl<T> store::Cache<T>` yields Cache.
func typeName(n *sitter.Node, src []byte) string {
	for n != nil {
		switch n.Type() {
		case "generic_type":
			n = n.ChildByFieldName("type")
		case "scoped_type_identifier":
			n = n.ChildByFieldName("name")
		default:
			return n.Content(src)
		}
	}
	return ""
}

// Query selects functions. Name is required and matched exactly; the other
// fields narrow the result when set.
type Query struct {
	Name   string
	Path   string
	Impl   string
	Traits []string
}

func (q Query) matches(f Function) bool {
	if f.Name != q.Name {
		return false
	}
	if q.Impl != "" && f.Impl != q.Impl {
		return false
	}
	if len(q.Traits) > 0 && !slices.Contains(q.Traits, f.Trait) {
		return false
	}
	return true
}

// Workspace is the part of the run context the finder needs.
type Workspace interface {
	Root() string
	Resolve(rel string) (string, error)
}

// Finder searches the Rust sources of a workspace.
type Finder struct {
	ws   Workspace
	scan search.ScanConfig
}

// NewFinder creates a Finder over the files scan selects in ws.
func NewFinder(ws Workspace, scan search.ScanConfig) (*Finder, error) {
	if ws == nil {
		return nil, errors.New("workspace cannot be nil")
	}
	if err := scan.Validate(); err != nil {
		return nil, err
	}
	return &Finder{ws: ws, scan: scan}, nil
}

// Find returns the functions matching q across the workspace, or within
// q.Path when set.
func (f *Finder) Find(ctx context.Context, q Query) ([]Function, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, errors.New("function name cannot be empty")
	}
	var files []string
	if q.Path != "" {
		full, err := f.ws.Resolve(q.Path)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(f.ws.Root(), full)
		if err != nil {
			return nil, err
		}
		files = []string{filepath.ToSlash(rel)}
	} else {
		all, err := f.scan.Scan(ctx, f.ws.Root())
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if path.Ext(p) == ".rs" {
				files = append(files, p)
			}
		}
	}

	var out []Function
	for _, rel := range files {
		src, err := os.ReadFile(filepath.Join(f.ws.Root(), filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		fns, err := Extract(ctx, rel, src)
		if err != nil {
			return nil, err
		}
		for _, fn := range fns {
			if q.matches(fn) {
				out = append(out, fn)
			}
		}
	}
	clog.FromContext(ctx).With("name", q.Name).With("files", len(files)).With("found", len(out)).Debug("Looked up Rust function")
	return out, nil
}

// Input is the input of find_rust_function_exact.
type Input struct {
	Name   string   `json:"name" jsonschema:"required,description=The exact function name to look up"`
	Path   string   `json:"path,omitempty" jsonschema:"description=Optional repository relative path of a single file to restrict the search to"`
	Impl   string   `json:"impl,omitempty" jsonschema:"description=Optional implementing type to restrict the search to. For Relay::check_rate_limit the impl is Relay"`
	Traits []string `json:"trait,omitempty" jsonschema:"description=Optional trait names to restrict the search to. For impl Default for Relay the trait is Default"`
}

// Tool returns the find_rust_function_exact handler.
func (f *Finder) Tool() (toolcall.Handler, error) {
	return toolcall.New(toolcall.FindRustFunctionExact,
		"Find Rust function definitions by exact name across the repository. Returns the line span, the scoped name, the trait if any and the full source of every match.",
		func(ctx context.Context, in Input) (any, error) {
			fns, err := f.Find(ctx, Query{Name: in.Name, Path: in.Path, Impl: in.Impl, Traits: in.Traits})
			if err != nil {
				return nil, err
			}
			if len(fns) == 0 {
				return fmt.Sprintf("No function named %s found", in.Name), nil
			}
			out := make([]string, 0, len(fns))
			for _, fn := range fns {
				out = append(out, fn.String())
			}
			return out, nil
		})
}
