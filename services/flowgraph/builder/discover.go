// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// walkDir walks search directories. Tests replace it to inject walk errors.
var walkDir = filepath.WalkDir

// componentFile is one discovered file and the type it is read as.
type componentFile struct {
	// Path is the absolute path.
	Path string

	// RelPath is the slash-separated path relative to the root.
	RelPath string

	Type graph.ComponentType
}

// discover lists component files per type, in type order then directory
// order, each directory sorted lexically. A file reachable from two search
// directories is listed once, under the first. Entries that cannot be
// walked are recorded as file errors and skipped.
func (b *Builder) discover(ctx context.Context, state *buildState, root string) ([]componentFile, error) {
	var (
		files []componentFile
		seen  = make(map[string]bool)
	)

	for _, t := range b.options.Types {
		for _, dir := range b.options.SearchDirs[t] {
			base := filepath.Join(root, filepath.FromSlash(dir))
			found, err := b.findComponentFiles(ctx, state, root, base)
			if err != nil {
				return files, err
			}
			for _, path := range found {
				if seen[path] {
					continue
				}
				seen[path] = true

				rel, err := filepath.Rel(root, path)
				if err != nil {
					rel = path
				}
				files = append(files, componentFile{
					Path:    path,
					RelPath: filepath.ToSlash(rel),
					Type:    t,
				})
			}
		}
	}
	return files, nil
}

// findComponentFiles walks base for .json files, skipping side files.
// A missing base directory yields no files.
func (b *Builder) findComponentFiles(ctx context.Context, state *buildState, root, base string) ([]string, error) {
	var files []string
	err := walkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == base {
				b.logger.Debug("search directory missing", slog.String("dir", base))
				return fs.SkipAll
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			b.recordFileError(state, filepath.ToSlash(rel), fmt.Errorf("walk: %w", err))
			if d == nil || d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != base && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if b.isComponentFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (b *Builder) isComponentFile(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".json") {
		return false
	}
	for _, suffix := range b.options.ExcludedSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return false
		}
	}
	return true
}
