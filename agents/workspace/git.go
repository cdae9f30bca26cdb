/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/waigani/diffparser"
)

// Diff returns the uncommitted changes of the working tree as
// `git diff --unified=0` prints them.
func (w *Workspace) Diff(ctx context.Context) (string, error) {
	out, err := w.git(ctx, "diff", "--unified=0")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// FileChange summarizes the uncommitted changes to one file.
type FileChange struct {
	Path    string
	Status  string
	Added   int
	Removed int
}

func (c FileChange) String() string {
	return fmt.Sprintf("%s %s (+%d -%d)", c.Status, c.Path, c.Added, c.Removed)
}

// DiffSummary returns per-file line counts of the uncommitted changes.
func (w *Workspace) DiffSummary(ctx context.Context) ([]FileChange, error) {
	out, err := w.git(ctx, "diff")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	return summarize(out)
}

func summarize(raw string) ([]FileChange, error) {
	d, err := diffparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	changes := make([]FileChange, 0, len(d.Files))
	for _, f := range d.Files {
		c := FileChange{Path: f.NewName, Status: "modified"}
		switch f.Mode {
		case diffparser.NEW:
			c.Status = "added"
		case diffparser.DELETED:
			c.Status = "deleted"
			c.Path = f.OrigName
		}
		for _, h := range f.Hunks {
			for _, l := range h.WholeRange.Lines {
				switch l.Mode {
				case diffparser.ADDED:
					c.Added++
				case diffparser.REMOVED:
					c.Removed++
				}
			}
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// Exclude appends patterns to .git/info/exclude so that CommitAndPush never
// stages matching files and FreshBranch never cleans them. Patterns already
// listed are skipped.
func (w *Workspace) Exclude(patterns ...string) error {
	info := filepath.Join(w.root, gogit.GitDirName, "info")
	if err := os.MkdirAll(info, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", info, err)
	}
	path := filepath.Join(info, "exclude")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	listed := strings.Split(string(data), "\n")

	var add strings.Builder
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		add.WriteString("\n")
	}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p == "" || slices.Contains(listed, p) {
			continue
		}
		listed = append(listed, p)
		add.WriteString(p + "\n")
	}
	if strings.TrimSpace(add.String()) == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(add.String()); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Add stages path.
func (w *Workspace) Add(path string) error {
	rel, err := w.Rel(path)
	if err != nil {
		return err
	}
	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("staging %s: %w", rel, err)
	}
	return nil
}

// CurrentBranch returns the short name of the checked out branch.
func (w *Workspace) CurrentBranch() (string, error) {
	head, err := w.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

// FreshBranch discards all local changes and checks out branch name cut
// from the latest remote base branch. An existing branch of that name is
// moved.
func (w *Workspace) FreshBranch(ctx context.Context, name string) error {
	branch := plumbing.NewBranchReferenceName(name)
	if err := branch.Validate(); err != nil {
		return fmt.Errorf("invalid branch name %q: %w", name, err)
	}
	if w.Protected(name) {
		return fmt.Errorf("creating %s: %w", name, ErrProtectedBranch)
	}
	log := clog.FromContext(ctx).With("branch", name).With("base", w.baseBranch)

	auth, err := w.auth()
	if err != nil {
		return err
	}
	refSpec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", w.baseBranch, w.remote, w.baseBranch))
	if err := w.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: w.remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       auth,
		Force:      true,
	}); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching %s: %w", w.baseBranch, err)
	}

	base, err := w.repo.Reference(plumbing.NewRemoteReferenceName(w.remote, w.baseBranch), true)
	if err != nil {
		return fmt.Errorf("resolving %s/%s: %w", w.remote, w.baseBranch, err)
	}

	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("resetting worktree: %w", err)
	}
	if err := wt.Clean(&gogit.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning worktree: %w", err)
	}
	if err := w.repo.Storer.SetReference(plumbing.NewHashReference(branch, base.Hash())); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Branch: branch, Force: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", name, err)
	}
	log.With("commit", base.Hash().String()).Info("Checked out fresh branch")
	return nil
}

// CommitAndPush stages every change, commits it with message and pushes the
// current branch. Protected branches are refused before anything is
// committed.
func (w *Workspace) CommitAndPush(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("commit message cannot be empty")
	}
	branch, err := w.CurrentBranch()
	if err != nil {
		return "", err
	}
	if w.Protected(branch) {
		return "", fmt.Errorf("pushing to %s: %w", branch, ErrProtectedBranch)
	}

	wt, err := w.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("staging changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("getting status: %w", err)
	}
	if status.IsClean() {
		return "", errors.New("nothing to commit, working tree clean")
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  w.identity.Name,
			Email: w.identity.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	auth, err := w.auth()
	if err != nil {
		return "", err
	}
	ref := plumbing.NewBranchReferenceName(branch)
	if err := w.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: w.remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:       auth,
	}); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("pushing %s: %w", branch, err)
	}

	clog.FromContext(ctx).With("branch", branch).With("commit", hash.String()).Info("Committed and pushed changes")
	return fmt.Sprintf("Successfully committed and pushed changes to branch '%s'", branch), nil
}

// auth returns HTTPS basic auth carrying the current token, or nil when no
// token source is configured.
func (w *Workspace) auth() (transport.AuthMethod, error) {
	if w.tokens == nil {
		return nil, nil
	}
	tok, err := w.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("getting git token: %w", err)
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: tok.AccessToken,
	}, nil
}

func (w *Workspace) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, w.gitBinary, args...)
	cmd.Dir = w.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
