/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package session allocates the output directory of a single run.
//
// Sessions live under <prefix>/YYYY/MM/DD/<n>, where n is one greater than
// the largest integer-named directory already present for that date, or 0
// when there is none. Directories are never removed.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// maxAttempts bounds how many taken numbers Allocate steps over.
const maxAttempts = 100

// Allocate creates and returns a fresh session directory under prefix for the
// date of now.
func Allocate(prefix string, now time.Time) (string, error) {
	if prefix == "" {
		return "", errors.New("session prefix cannot be empty")
	}
	day := DayDir(prefix, now)
	if err := os.MkdirAll(day, 0o755); err != nil {
		return "", fmt.Errorf("creating session root %s: %w", day, err)
	}

	// Mkdir fails when another run claimed the number first, or when a
	// non-directory entry already has that name; move past it.
	tried := -1
	for range maxAttempts {
		next, err := Next(day)
		if err != nil {
			return "", err
		}
		if next <= tried {
			next = tried + 1
		}
		dir := filepath.Join(day, strconv.Itoa(next))
		switch err := os.Mkdir(dir, 0o755); {
		case err == nil:
			return dir, nil
		case errors.Is(err, fs.ErrExist):
			tried = next
		default:
			return "", fmt.Errorf("creating session directory %s: %w", dir, err)
		}
	}
	return "", fmt.Errorf("no free session directory in %s after %d attempts", day, maxAttempts)
}

// DayDir returns the date directory sessions for now are allocated in.
func DayDir(prefix string, now time.Time) string {
	return filepath.Join(prefix, now.Format("2006"), now.Format("01"), now.Format("02"))
}

// Next returns the number the next session in day would get. Entries that
// are not directories or whose names are not non-negative integers are
// ignored. A missing day directory yields 0.
func Next(day string) (int, error) {
	entries, err := os.ReadDir(day)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", day, err)
	}
	next := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n < 0 {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}
