package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScanDirectory walks root in lexical order, filters supported images and
// hashes each one. Unreadable entries are reported per file and the walk
// continues; only a cancelled context or a bad root aborts it.
func ScanDirectory(ctx context.Context, root string, opts ScanOptions) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	exts := extSet(opts.Extensions)

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !matches(path, exts) {
			return nil
		}
		stats.Matched++

		sum, size, err := HashFile(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, Hash: sum, HashHex: hex.EncodeToString(sum), Size: size})
		stats.Succeeded++
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// Paths returns the paths of the successfully scanned files.
func Paths(results []FileResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err == "" {
			out = append(out, r.Path)
		}
	}
	return out
}
