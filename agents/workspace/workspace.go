/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workspace is the explicit run context the tools operate on: one
// checked-out git repository, the branch policy that applies to it and the
// credentials used to push from it.
//
// Every path a tool hands to the workspace is relative to the repository
// root and is refused when it resolves outside of it.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"golang.org/x/oauth2"
)

var (
	// ErrEscapesRoot is returned for paths that resolve outside the
	// repository root.
	ErrEscapesRoot = errors.New("path escapes workspace root")
	// ErrProtectedBranch is returned when a change would be pushed to, or a
	// pull request opened from, a protected branch.
	ErrProtectedBranch = errors.New("refusing to operate on protected branch")
)

const (
	// DefaultBaseBranch is the branch fresh branches start from.
	DefaultBaseBranch = "dev"
	// DefaultRemote is the remote fetched from and pushed to.
	DefaultRemote = "origin"
)

// DefaultProtectedBranches are never pushed to.
var DefaultProtectedBranches = []string{"dev", "main", "staging", "test"}

// Identity is the commit author.
type Identity struct {
	Name  string
	Email string
}

// Workspace is a repository checkout plus the policy that applies to it.
type Workspace struct {
	root       string
	realRoot   string
	repo       *gogit.Repository
	baseBranch string
	remote     string
	protected  []string
	tokens     oauth2.TokenSource
	identity   Identity
	gitBinary  string
}

// Option configures a Workspace.
type Option func(*Workspace) error

// WithBaseBranch sets the branch fresh branches are cut from and pull
// requests target.
func WithBaseBranch(branch string) Option {
	return func(w *Workspace) error {
		if strings.TrimSpace(branch) == "" {
			return errors.New("base branch cannot be empty")
		}
		w.baseBranch = branch
		return nil
	}
}

// WithProtectedBranches replaces the protected branch list.
func WithProtectedBranches(branches ...string) Option {
	return func(w *Workspace) error {
		w.protected = nil
		for _, b := range branches {
			if b = strings.TrimSpace(b); b != "" {
				w.protected = append(w.protected, b)
			}
		}
		return nil
	}
}

// WithRemote sets the remote name used for fetches and pushes.
func WithRemote(name string) Option {
	return func(w *Workspace) error {
		if name == "" {
			return errors.New("remote cannot be empty")
		}
		w.remote = name
		return nil
	}
}

// WithTokenSource sets the source of the token used to authenticate git
// fetches and pushes over HTTPS.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(w *Workspace) error {
		w.tokens = ts
		return nil
	}
}

// WithIdentity sets the commit author.
func WithIdentity(name, email string) Option {
	return func(w *Workspace) error {
		if name == "" || email == "" {
			return errors.New("identity requires a name and an email")
		}
		w.identity = Identity{Name: name, Email: email}
		return nil
	}
}

// WithGitBinary overrides the git executable used for diffs.
func WithGitBinary(path string) Option {
	return func(w *Workspace) error {
		if path == "" {
			return errors.New("git binary cannot be empty")
		}
		w.gitBinary = path
		return nil
	}
}

// Open opens the git repository at root.
func Open(root string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %q: %w", root, err)
	}
	repo, err := gogit.PlainOpen(abs)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", abs, err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", abs, err)
	}
	w := &Workspace{
		root:       abs,
		realRoot:   resolvedRoot,
		repo:       repo,
		baseBranch: DefaultBaseBranch,
		remote:     DefaultRemote,
		protected:  slices.Clone(DefaultProtectedBranches),
		identity:   Identity{Name: "redgold-ai", Email: "redgold-ai@users.noreply.github.com"},
		gitBinary:  "git",
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return w, nil
}

// Root returns the absolute repository root.
func (w *Workspace) Root() string { return w.root }

// BaseBranch returns the branch pull requests target.
func (w *Workspace) BaseBranch() string { return w.baseBranch }

// Protected reports whether branch may never be pushed to.
func (w *Workspace) Protected(branch string) bool {
	return slices.Contains(w.protected, branch)
}

// Resolve maps a repository-relative path to an absolute one. Absolute
// paths are accepted when they lie inside the root. Symbolic links are
// followed, so a link inside the repository that points outside of it is
// refused like any other escape.
func (w *Workspace) Resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", errors.New("path cannot be empty")
	}
	full := rel
	if !filepath.IsAbs(full) {
		full = filepath.Join(w.root, rel)
	}
	full = filepath.Clean(full)
	if !within(w.root, full) {
		return "", fmt.Errorf("path %q: %w", rel, ErrEscapesRoot)
	}
	resolved, err := realPath(full)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", rel, err)
	}
	if !within(w.realRoot, resolved) {
		return "", fmt.Errorf("path %q: %w", rel, ErrEscapesRoot)
	}
	return full, nil
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// realPath resolves the symbolic links of the longest existing prefix of
// path and appends the rest unchanged.
func realPath(path string) (string, error) {
	existing, rest := path, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", existing, err)
	}
	return filepath.Join(resolved, rest), nil
}

// Rel is the inverse of Resolve: the slash-separated path of abs relative to
// the root.
func (w *Workspace) Rel(abs string) (string, error) {
	full, err := w.Resolve(abs)
	if err != nil {
		return "", err
	}
	r, err := filepath.Rel(w.root, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(r), nil
}
