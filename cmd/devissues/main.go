/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main prints the open issues of a repository in the format the
// agent is given them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chainguard.dev/devloop/agents/tools/ghtools"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/google/go-github/v84/github"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
)

type config struct {
	GitHubToken string `env:"GITHUB_TOKEN"`
	Owner       string `env:"GITHUB_OWNER,required"`
	Repo        string `env:"GITHUB_REPO,required"`
	IssueLabel  string `env:"ISSUE_LABEL"`
	Brief       bool   `env:"BRIEF,default=false"`
}

var divider = "\n" + strings.Repeat("-", 80) + "\n"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	gh := github.NewClient(nil)
	if cfg.GitHubToken != "" {
		gh = github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})))
	}
	c, err := ghtools.New(gh, cfg.Owner, cfg.Repo)
	if err != nil {
		clog.FatalContextf(ctx, "creating client: %v", err)
	}
	if err := run(ctx, &cfg, c, os.Stdout); err != nil {
		clog.FatalContextf(ctx, "devissues failed: %v", err)
	}
}

type issueLister interface {
	Issues(ctx context.Context, label string) ([]*github.Issue, error)
}

func run(ctx context.Context, cfg *config, c issueLister, out io.Writer) error {
	issues, err := c.Issues(ctx, cfg.IssueLabel)
	if err != nil {
		return err
	}
	clog.FromContext(ctx).With("label", cfg.IssueLabel).Infof("Found %d open issues", len(issues))

	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		if cfg.Brief {
			parts = append(parts, ghtools.FormatIssueBrief(is))
			continue
		}
		parts = append(parts, strings.TrimSuffix(ghtools.FormatIssue(is), "\n"))
	}
	sep := divider
	if cfg.Brief {
		sep = "\n"
	}
	if len(parts) == 0 {
		return nil
	}
	_, err = fmt.Fprintln(out, strings.Join(parts, sep))
	return err
}
