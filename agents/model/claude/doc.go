/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claude implements model.Client on the Anthropic Messages API.
//
// The client can talk to the Anthropic API directly or through Vertex AI:
//
//	client := anthropic.NewClient(
//	    vertex.WithGoogleAuth(ctx, region, projectID),
//	    option.WithMaxRetries(0),
//	)
//
//	mc, err := claude.New(client, claude.WithModel("claude-sonnet-4@20250514"))
//
// Retries are the caller's concern; the SDK's own retries should be disabled so
// the retry policy in agents/executor/retry is the only one in play. HTTP 429
// and 529 (overloaded) responses are reported as model.ErrRateLimited.
package claude
