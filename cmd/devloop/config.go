/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chainguard.dev/devloop/agents/driver"
	"chainguard.dev/devloop/agents/tools/search"
)

const (
	modeIssue        = "issue"
	modeUnsupervised = "unsupervised"

	// unsupervisedMaxRuns is the turn ceiling of unsupervised runs when
	// MAX_RUNS is not set.
	unsupervisedMaxRuns = 200
)

type config struct {
	MetricsPort int `env:"METRICS_PORT,default=0"`

	// Model provider
	Provider        string  `env:"PROVIDER,default=anthropic"`
	AnthropicAPIKey string  `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string  `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string  `env:"GEMINI_API_KEY"`
	GCPProjectID    string  `env:"GCP_PROJECT_ID"` // Defaults to the metadata server's project
	GCPRegion       string  `env:"GCP_REGION,default=us-central1"`
	Model           string  `env:"MODEL"`
	MaxTokens       int64   `env:"MAX_TOKENS,default=8192"`
	Temperature     float64 `env:"TEMPERATURE,default=0"`

	// Agent loop
	Mode               string `env:"MODE,default=issue"`
	SystemPromptFile   string `env:"SYSTEM_PROMPT_FILE"`
	MaxRuns            int    `env:"MAX_RUNS"` // Defaults by mode
	SummarizeThreshold int64  `env:"SUMMARIZE_THRESHOLD,default=50000"`
	TranscriptPrefix   string `env:"TRANSCRIPT_PREFIX,default=./ignore-data/claude"`
	TranscriptBucket   string `env:"TRANSCRIPT_BUCKET"`

	// Workspace
	WorkspaceRoot     string   `env:"WORKSPACE_ROOT"` // Defaults to ~/ai/workspace
	SearchDB          string   `env:"SEARCH_DB"`      // Defaults to a per-checkout user cache directory
	BaseBranch        string   `env:"BASE_BRANCH,default=dev"`
	ProtectedBranches []string `env:"PROTECTED_BRANCHES,default=dev,main,staging,test"`

	// GitHub
	GitHubToken          string `env:"GITHUB_TOKEN"`
	GitHubAppID          int64  `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	GitHubAppKeyFile     string `env:"GITHUB_APP_KEY_FILE"`
	Owner                string `env:"GITHUB_OWNER,required"`
	Repo                 string `env:"GITHUB_REPO,required"`
	Login                string `env:"AI_LOGIN,default=redgold-ai"`

	// Task selection
	IssueLabel  string `env:"ISSUE_LABEL,default=ai-dev"`
	IssueNumber int    `env:"ISSUE_NUMBER,default=0"`
	Task        string `env:"TASK"`
}

func (c *config) validate() error {
	switch c.Provider {
	case "anthropic", "openai", "gemini", "vertex":
	default:
		return fmt.Errorf("unknown PROVIDER %q: want anthropic, openai, gemini or vertex", c.Provider)
	}
	switch c.Mode {
	case modeIssue, modeUnsupervised:
	default:
		return fmt.Errorf("unknown MODE %q: want %s or %s", c.Mode, modeIssue, modeUnsupervised)
	}
	if c.MaxRuns < 0 {
		return fmt.Errorf("MAX_RUNS cannot be negative, got %d", c.MaxRuns)
	}
	if c.IssueNumber < 0 {
		return fmt.Errorf("ISSUE_NUMBER cannot be negative, got %d", c.IssueNumber)
	}
	if c.appAuth() {
		if c.GitHubInstallationID == 0 || c.GitHubAppKeyFile == "" {
			return errors.New("GITHUB_APP_ID requires GITHUB_INSTALLATION_ID and GITHUB_APP_KEY_FILE")
		}
	} else if c.GitHubToken == "" {
		return errors.New("one of GITHUB_TOKEN or GITHUB_APP_ID is required")
	}
	return nil
}

func (c *config) appAuth() bool {
	return c.GitHubAppID != 0
}

func (c *config) maxRuns() int {
	switch {
	case c.MaxRuns > 0:
		return c.MaxRuns
	case c.Mode == modeUnsupervised:
		return unsupervisedMaxRuns
	default:
		return driver.DefaultMaxRuns
	}
}

func (c *config) workspaceRoot() (string, error) {
	if c.WorkspaceRoot != "" {
		return c.WorkspaceRoot, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving default workspace: %w", err)
	}
	return filepath.Join(home, "ai", "workspace"), nil
}

func (c *config) searchDB(root string) (string, error) {
	if c.SearchDB != "" {
		return filepath.Abs(c.SearchDB)
	}
	return search.DefaultPath(root)
}
