// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changeset maps changed files to component ids.
//
// A change set is the bridge between a version-control change (a unified
// diff or a list of paths) and impact analysis, which works on component
// ids. Files are matched against the workspace-relative path the builder
// records on every node.
package changeset

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// ErrInvalidPatch is returned when a patch cannot be parsed.
var ErrInvalidPatch = errors.New("invalid patch")

// ChangeType describes how a file was changed.
type ChangeType string

const (
	ChangeAdded    ChangeType = "A"
	ChangeModified ChangeType = "M"
	ChangeDeleted  ChangeType = "D"
	ChangeRenamed  ChangeType = "R"
)

const devNull = "/dev/null"

// ChangedFile is one file touched by a change.
type ChangedFile struct {
	Path     string     `json:"path"`
	OrigPath string     `json:"origPath,omitempty"`
	Change   ChangeType `json:"change"`
}

// ChangeSet is the set of components touched by a change.
type ChangeSet struct {
	// Files touched, in patch order.
	Files []ChangedFile `json:"files"`

	// ComponentIDs of the nodes whose files were touched, sorted.
	ComponentIDs []string `json:"componentIds"`

	// Unmatched lists touched paths that belong to no node, sorted.
	Unmatched []string `json:"unmatched"`
}

// FromPatch parses a unified diff and maps its files onto g.
//
// Description:
//
//	Reads every file section of the patch, strips git's a/ prefix from old
//	names and b/ from new names, and looks up the nodes recorded at the old and new paths.
//	A file matches a node when the paths are equal or the patch path ends
//	with "/" + the node path, so patches taken from a parent directory of
//	the workspace still resolve.
//
// Outputs:
//
//	*ChangeSet - Never nil on success. An empty patch yields an empty set.
//	error - ErrInvalidPatch if the diff cannot be parsed.
func FromPatch(patch []byte, g *graph.Graph) (*ChangeSet, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	files := make([]ChangedFile, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		files = append(files, changedFile(fd))
	}
	return match(files, g), nil
}

// FromPaths maps an explicit list of modified paths onto g.
func FromPaths(paths []string, g *graph.Graph) *ChangeSet {
	files := make([]ChangedFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, ChangedFile{Path: cleanPath(p), Change: ChangeModified})
	}
	return match(files, g)
}

func changedFile(fd *diff.FileDiff) ChangedFile {
	orig := patchPath(fd.OrigName, "a/")
	name := patchPath(fd.NewName, "b/")

	switch {
	case fd.OrigName == devNull || orig == "":
		return ChangedFile{Path: name, Change: ChangeAdded}
	case fd.NewName == devNull || name == "":
		return ChangedFile{Path: orig, Change: ChangeDeleted}
	case orig != name:
		return ChangedFile{Path: name, OrigPath: orig, Change: ChangeRenamed}
	default:
		return ChangedFile{Path: name, Change: ChangeModified}
	}
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == devNull {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(path.Clean(p), "./")
}

// patchPath cleans a file name from a patch header, dropping git's side
// prefix ("a/" for the old file, "b/" for the new one).
func patchPath(p, prefix string) string {
	return cleanPath(strings.TrimPrefix(strings.TrimSpace(p), prefix))
}

func match(files []ChangedFile, g *graph.Graph) *ChangeSet {
	byPath := make(map[string][]string)
	for _, n := range g.Nodes() {
		if p := n.Path(); p != "" {
			byPath[p] = append(byPath[p], n.ID)
		}
	}

	ids := make(map[string]bool)
	unmatched := make(map[string]bool)
	for _, f := range files {
		for _, p := range []string{f.Path, f.OrigPath} {
			if p == "" {
				continue
			}
			found := lookup(byPath, p)
			if len(found) == 0 {
				unmatched[p] = true
				continue
			}
			for _, id := range found {
				ids[id] = true
			}
		}
	}

	return &ChangeSet{
		Files:        files,
		ComponentIDs: sortedKeys(ids),
		Unmatched:    sortedKeys(unmatched),
	}
}

func lookup(byPath map[string][]string, p string) []string {
	if ids, ok := byPath[p]; ok {
		return ids
	}
	var out []string
	for nodePath, ids := range byPath {
		if strings.HasSuffix(p, "/"+nodePath) {
			out = append(out, ids...)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
