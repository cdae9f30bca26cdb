/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/devloop/agents/model"
	"chainguard.dev/devloop/agents/model/claude"
	"chainguard.dev/devloop/agents/model/gemini"
	openaimodel "chainguard.dev/devloop/agents/model/openai"
	"cloud.google.com/go/compute/metadata"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// newModelClient builds the model client for cfg.Provider. The SDKs fall
// back to their own environment variables when no key is configured.
//
// PROVIDER=vertex serves Gemini models through Vertex AI, or Claude models
// when MODEL names one.
func newModelClient(ctx context.Context, cfg *config) (model.Client, error) {
	log := clog.FromContext(ctx).With("provider", cfg.Provider)

	switch cfg.Provider {
	case "anthropic":
		return claude.New(anthropic.NewClient(anthropicRequestOptions(cfg)...), claudeOptions(cfg)...)

	case "openai":
		client := openai.NewClient(openaiRequestOptions(cfg)...)
		var mopts []openaimodel.Option
		if cfg.Model != "" {
			mopts = append(mopts, openaimodel.WithModel(cfg.Model))
		}
		return openaimodel.New(&client, mopts...)

	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini API client: %w", err)
		}
		return gemini.New(client, geminiOptions(cfg)...)

	case "vertex":
		projectID := cfg.GCPProjectID
		if projectID == "" {
			id, err := metadata.ProjectIDWithContext(ctx)
			if err != nil {
				return nil, fmt.Errorf("detecting project ID: %w", err)
			}
			projectID = id
		}
		log = log.With("project_id", projectID).With("region", cfg.GCPRegion)

		if strings.HasPrefix(cfg.Model, "claude") {
			log.Info("Using Claude on Vertex AI")
			client := anthropic.NewClient(vertex.WithGoogleAuth(ctx, cfg.GCPRegion, projectID), anthropicoption.WithMaxRetries(0))
			return claude.New(client, claudeOptions(cfg)...)
		}

		log.Info("Using Gemini on Vertex AI")
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  projectID,
			Location: cfg.GCPRegion,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Vertex AI client: %w", err)
		}
		return gemini.New(client, geminiOptions(cfg)...)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// anthropicRequestOptions disables the SDK's own retries; model calls are
// retried only by the driver's retry policy.
func anthropicRequestOptions(cfg *config) []anthropicoption.RequestOption {
	opts := []anthropicoption.RequestOption{anthropicoption.WithMaxRetries(0)}
	if cfg.AnthropicAPIKey != "" {
		opts = append(opts, anthropicoption.WithAPIKey(cfg.AnthropicAPIKey))
	}
	return opts
}

// openaiRequestOptions is anthropicRequestOptions for the OpenAI SDK.
func openaiRequestOptions(cfg *config) []openaioption.RequestOption {
	opts := []openaioption.RequestOption{openaioption.WithMaxRetries(0)}
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, openaioption.WithAPIKey(cfg.OpenAIAPIKey))
	}
	return opts
}

func claudeOptions(cfg *config) []claude.Option {
	if cfg.Model == "" {
		return nil
	}
	return []claude.Option{claude.WithModel(cfg.Model)}
}

func geminiOptions(cfg *config) []gemini.Option {
	if cfg.Model == "" {
		return nil
	}
	return []gemini.Option{gemini.WithModel(cfg.Model)}
}
