/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// installationTokens adapts an app installation transport to a token source
// for git pushes. The transport caches and refreshes the token itself.
type installationTokens struct {
	ctx context.Context
	itr *ghinstallation.Transport
}

func (s installationTokens) Token() (*oauth2.Token, error) {
	tok, err := s.itr.Token(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching installation token: %w", err)
	}
	return &oauth2.Token{AccessToken: tok}, nil
}

// githubAuth returns the GitHub API client and the token source git pushes
// authenticate with.
func githubAuth(ctx context.Context, cfg *config) (*github.Client, oauth2.TokenSource, error) {
	if cfg.appAuth() {
		itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubAppKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("creating app installation transport: %w", err)
		}
		clog.FromContext(ctx).With("app_id", cfg.GitHubAppID).
			With("installation_id", cfg.GitHubInstallationID).
			Info("Using GitHub App authentication")
		return github.NewClient(&http.Client{Transport: itr}), installationTokens{ctx: ctx, itr: itr}, nil
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
	return github.NewClient(oauth2.NewClient(ctx, ts)), ts, nil
}
