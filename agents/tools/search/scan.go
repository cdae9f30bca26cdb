/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package search

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ScanConfig selects the files of a repository that are indexed. A file is
// indexed when its name is in FileInclusions, or when its extension is in
// ExtInclusions and neither its name nor its extension is excluded. Ignore
// holds doublestar patterns matched against the slash-separated path
// relative to the root.
type ScanConfig struct {
	DirExclusions  []string
	FileExclusions []string
	FileInclusions []string
	ExtExclusions  []string
	ExtInclusions  []string
	Ignore         []string
	// MaxFileBytes skips larger files. Zero means no limit.
	MaxFileBytes int64
}

// DefaultScanConfig returns the file selection used for Rust monorepos with
// web frontends and deployment scripts.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		DirExclusions: []string{
			".git", "target", "node_modules", ".idea", "experiments", "venv",
			".nuxt", ".output", "dist", ".sqlx", "ignore-data", ".devloop",
		},
		FileExclusions: []string{
			".DS_Store", "graph_data.csv", "node-exporter-full_rev31.json",
			"api.json", "full_moon.csv", "models.rs", "grafana.ini", "package-lock.json",
		},
		FileInclusions: []string{".env", ".gitignore", "Dockerfile", "NOTICE", "certificate_renewal"},
		ExtExclusions:  []string{"png", "jpeg", "jpg", "svg", "ico", "webp", "bin", "wasm"},
		ExtInclusions: []string{
			"rs", "sh", "md", "toml", "yaml", "py", "js", "json", "production", "html",
			"env", "yml", "sol", "abi", "csv", "txt", "service", "vue", "proto", "sql",
			"Dockerfile", "conf", "ini", "ts", "go",
		},
		MaxFileBytes: 2 << 20,
	}
}

// Validate checks the ignore patterns.
func (c ScanConfig) Validate() error {
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return nil
}

// includes reports whether the file at slash-separated rel is indexed.
func (c ScanConfig) includes(rel string) bool {
	for _, p := range c.Ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	name := path.Base(rel)
	if slices.Contains(c.FileExclusions, name) {
		return false
	}
	if slices.Contains(c.FileInclusions, name) {
		return true
	}
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" || slices.Contains(c.ExtExclusions, ext) {
		return false
	}
	return slices.Contains(c.ExtInclusions, ext)
}

// Scan returns the slash-separated paths, relative to root, of every file
// the config selects, in lexical order.
func (c ScanConfig) Scan(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && slices.Contains(c.DirExclusions, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !c.includes(rel) {
			return nil
		}
		if c.MaxFileBytes > 0 {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if fi.Size() > c.MaxFileBytes {
				return nil
			}
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return out, nil
}
