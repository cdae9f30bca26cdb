/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the coding agent against one repository checkout: it
// picks a task, lets the model work through the tools until the run is
// done, and keeps the transcript of the session.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chainguard.dev/devloop/agents/agenttrace"
	"chainguard.dev/devloop/agents/dispatcher"
	"chainguard.dev/devloop/agents/driver"
	"chainguard.dev/devloop/agents/metrics"
	"chainguard.dev/devloop/agents/session"
	"chainguard.dev/devloop/agents/tools/ghtools"
	"chainguard.dev/devloop/agents/transcript"
	"chainguard.dev/devloop/agents/workspace"
	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/chainguard-dev/terraform-infra-common/pkg/httpmetrics"
	"github.com/chainguard-dev/terraform-infra-common/pkg/profiler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	profiler.SetupProfiler()
	defer httpmetrics.SetupTracer(ctx)()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		clog.FatalContextf(ctx, "invalid config: %v", err)
	}

	if cfg.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.MetricsPort)
	}

	if err := run(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "devloop failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config) error {
	log := clog.FromContext(ctx)

	gh, tokens, err := githubAuth(ctx, cfg)
	if err != nil {
		return err
	}

	root, err := cfg.workspaceRoot()
	if err != nil {
		return err
	}
	ws, err := workspace.Open(root,
		workspace.WithBaseBranch(cfg.BaseBranch),
		workspace.WithProtectedBranches(cfg.ProtectedBranches...),
		workspace.WithTokenSource(tokens),
	)
	if err != nil {
		return err
	}
	log = log.With("workspace", ws.Root())

	ghc, err := ghtools.New(gh, cfg.Owner, cfg.Repo,
		ghtools.WithLogin(cfg.Login),
		ghtools.WithBranches(ws),
	)
	if err != nil {
		return err
	}

	db, err := cfg.searchDB(ws.Root())
	if err != nil {
		return err
	}
	// An index kept inside the checkout must stay out of commits and cleans.
	if rel, err := ws.Rel(db); err == nil {
		if err := ws.Exclude("/" + rel + "*"); err != nil {
			return err
		}
	}
	tools, err := newToolset(ctx, ws, ghc, db)
	if err != nil {
		return err
	}
	defer tools.Close()

	client, err := newModelClient(ctx, cfg)
	if err != nil {
		return err
	}

	system, err := systemPrompt(cfg, ws.Root())
	if err != nil {
		return err
	}
	task, issue, err := seedTask(ctx, cfg, ghc)
	if err != nil {
		return err
	}
	branch, err := ws.CurrentBranch()
	if err != nil {
		log.With("error", err).Warn("Workspace is not on a branch")
	}

	dir, err := session.Allocate(cfg.TranscriptPrefix, time.Now())
	if err != nil {
		return err
	}
	log = log.With("session", dir)
	log.Infof("Starting %s run with %d tools", cfg.Mode, tools.registry.Len())

	genai := metrics.NewGenAI(metrics.MeterName)
	genai.SetAttributeEnricher(metrics.RunContextEnricher)
	disp, err := dispatcher.New(tools.registry, dispatcher.WithGenAIMetrics(genai))
	if err != nil {
		return err
	}

	opts := []driver.Option{
		driver.WithMaxTokens(cfg.MaxTokens),
		driver.WithTemperature(cfg.Temperature),
		driver.WithSystemPrompt(system),
		driver.WithMaxRuns(cfg.maxRuns()),
		driver.WithSummarization(cfg.SummarizeThreshold, ""),
		driver.WithSessionDir(dir),
		driver.WithGenAIMetrics(genai),
	}
	if cfg.Model != "" {
		opts = append(opts, driver.WithModel(cfg.Model))
	}
	d, err := driver.New(client, disp, opts...)
	if err != nil {
		return err
	}

	ctx = clog.WithLogger(ctx, log)
	ctx = agenttrace.WithTracer(ctx, agenttrace.NewDefaultTracer(ctx))
	ctx = agenttrace.WithRunContext(ctx, agenttrace.RunContext{
		Repository: cfg.Owner + "/" + cfg.Repo,
		Branch:     branch,
		Issue:      issue,
		Mode:       cfg.Mode,
		Session:    dir,
	})
	res, runErr := d.Run(ctx, task)

	if cfg.TranscriptBucket != "" {
		if err := archive(ctx, cfg, dir); err != nil {
			log.With("error", err).Warn("Failed to archive transcript")
		}
	}
	if runErr != nil {
		return runErr
	}
	log.With("outcome", string(res.Outcome)).Infof("Run finished after %d turns", res.Turns)
	return nil
}

// archive uploads the session transcript to TRANSCRIPT_BUCKET under the
// session's path below TRANSCRIPT_PREFIX.
func archive(ctx context.Context, cfg *config, dir string) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating storage client: %w", err)
	}
	defer client.Close()

	rel, err := filepath.Rel(cfg.TranscriptPrefix, dir)
	if err != nil {
		return err
	}
	up := transcript.BucketUploader(client.Bucket(cfg.TranscriptBucket))
	return transcript.Archive(ctx, up, filepath.ToSlash(rel), dir)
}

func serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	clog.InfoContextf(ctx, "Serving metrics on port %d", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.ErrorContextf(ctx, "metrics server failed: %v", err)
	}
}
