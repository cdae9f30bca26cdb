/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package search maintains a SQLite FTS5 index of the workspace and serves
// the full_text_repo_search tool from it.
//
// The index stores one row per source line. Refresh hashes every selected
// file with BLAKE3 and re-indexes only the files whose hash changed, so it
// is cheap to run before each query.
package search

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// ErrNoIndex is returned by Search when nothing has been indexed yet.
var ErrNoIndex = errors.New("no search index; refresh the index first")

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS lines (
	path   TEXT NOT NULL,
	number INTEGER NOT NULL,
	text   TEXT NOT NULL,
	PRIMARY KEY (path, number)
);
CREATE VIRTUAL TABLE IF NOT EXISTS lines_fts USING fts5(
	text,
	path UNINDEXED,
	number UNINDEXED,
	tokenize = 'unicode61'
);
`

// Index is a full-text index of the files under one root.
type Index struct {
	db   *sql.DB
	root string
	scan ScanConfig
	// mu serializes refreshes.
	mu sync.Mutex
}

// Option configures an Index.
type Option func(*Index) error

// WithScanConfig replaces DefaultScanConfig.
func WithScanConfig(c ScanConfig) Option {
	return func(ix *Index) error {
		if err := c.Validate(); err != nil {
			return err
		}
		ix.scan = c
		return nil
	}
}

// DefaultPath returns where the index of the checkout at root lives by
// default: a directory of the user cache named after a hash of root, so the
// index never lands inside the repository it describes.
func DefaultPath(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating the user cache: %w", err)
	}
	sum := blake3.Sum256([]byte(abs))
	return filepath.Join(cache, "devloop", hex.EncodeToString(sum[:8]), "index.db"), nil
}

// Open opens, creating if needed, the index database at dbPath for the
// files under root.
func Open(ctx context.Context, dbPath, root string, opts ...Option) (*Index, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", dbPath, err)
	}
	// One connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "fts5") {
			return nil, fmt.Errorf("SQLite FTS5 is unavailable: %w", err)
		}
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	ix := &Index{db: db, root: root, scan: DefaultScanConfig()}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return ix, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Stats counts what one Refresh did.
type Stats struct {
	Scanned   int
	Indexed   int
	Unchanged int
	Removed   int
	Lines     int
}

type fileContent struct {
	path  string
	hash  string
	lines []string
}

// Refresh brings the index up to date with the files on disk.
func (ix *Index) Refresh(ctx context.Context) (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var st Stats
	paths, err := ix.scan.Scan(ctx, ix.root)
	if err != nil {
		return st, err
	}
	st.Scanned = len(paths)

	known, err := ix.hashes(ctx)
	if err != nil {
		return st, err
	}

	contents := make([]*fileContent, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fc, err := ix.read(p)
			if err != nil {
				return err
			}
			contents[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return st, err
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("beginning refresh: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool, len(contents))
	for _, fc := range contents {
		if fc == nil {
			continue
		}
		seen[fc.path] = true
		if known[fc.path] == fc.hash {
			st.Unchanged++
			continue
		}
		if err := replaceFile(ctx, tx, fc); err != nil {
			return st, err
		}
		st.Indexed++
		st.Lines += len(fc.lines)
	}
	for p := range known {
		if seen[p] {
			continue
		}
		if err := deleteFile(ctx, tx, p); err != nil {
			return st, err
		}
		st.Removed++
	}
	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("committing refresh: %w", err)
	}

	clog.FromContext(ctx).With("scanned", st.Scanned).
		With("indexed", st.Indexed).
		With("removed", st.Removed).
		Debug("Refreshed search index")
	return st, nil
}

func (ix *Index) hashes(ctx context.Context) (map[string]string, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT path, hash FROM files`)
	if err != nil {
		return nil, fmt.Errorf("listing indexed files: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, h string
		if err := rows.Scan(&p, &h); err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, rows.Err()
}

// read hashes and splits one file. Files that are not valid UTF-8 yield nil
// and drop out of the index.
func (ix *Index) read(rel string) (*fileContent, error) {
	data, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	if !utf8.Valid(data) {
		return nil, nil
	}
	sum := blake3.Sum256(data)
	text := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return &fileContent{path: rel, hash: hex.EncodeToString(sum[:]), lines: lines}, nil
}

func replaceFile(ctx context.Context, tx *sql.Tx, fc *fileContent) error {
	if err := deleteFile(ctx, tx, fc.path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO files (path, hash) VALUES (?, ?)`, fc.path, fc.hash); err != nil {
		return fmt.Errorf("indexing %s: %w", fc.path, err)
	}
	insLine, err := tx.PrepareContext(ctx, `INSERT INTO lines (path, number, text) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insLine.Close()
	insFTS, err := tx.PrepareContext(ctx, `INSERT INTO lines_fts (text, path, number) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insFTS.Close()
	for i, line := range fc.lines {
		if _, err := insLine.ExecContext(ctx, fc.path, i+1, line); err != nil {
			return fmt.Errorf("indexing %s:%d: %w", fc.path, i+1, err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := insFTS.ExecContext(ctx, line, fc.path, i+1); err != nil {
			return fmt.Errorf("indexing %s:%d: %w", fc.path, i+1, err)
		}
	}
	return nil
}

func deleteFile(ctx context.Context, tx *sql.Tx, path string) error {
	for _, q := range []string{
		`DELETE FROM files WHERE path = ?`,
		`DELETE FROM lines WHERE path = ?`,
		`DELETE FROM lines_fts WHERE path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, path); err != nil {
			return fmt.Errorf("removing %s from index: %w", path, err)
		}
	}
	return nil
}
