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
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
)

// FileError represents a failure to process a single component file.
type FileError struct {
	// FilePath is the workspace-relative path of the file.
	FilePath string `json:"filePath"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.FilePath, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e FileError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as {"filePath": ..., "error": ...}.
func (e FileError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		FilePath string `json:"filePath"`
		Error    string `json:"error"`
	}{e.FilePath, msg})
}

// EdgeError represents a failure to add a single dependency edge.
type EdgeError struct {
	FromID string
	ToID   string
	Err    error
}

// Error implements the error interface.
func (e EdgeError) Error() string {
	return fmt.Sprintf("edge %s -> %s: %v", e.FromID, e.ToID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e EdgeError) Unwrap() error {
	return e.Err
}

// FileReferenceIssue is a reference left unresolved in one file.
type FileReferenceIssue struct {
	FilePath string `json:"filePath"`
	normalize.ReferenceIssue
}

// DuplicateComponent records a file skipped because an earlier file
// produced the same component id.
type DuplicateComponent struct {
	// ID is the component id both files produce.
	ID string `json:"id"`

	// FilePath is the skipped file.
	FilePath string `json:"filePath"`

	// KeptPath is the file whose node is in the graph.
	KeptPath string `json:"keptPath"`
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// FilesDiscovered is the number of component files found.
	FilesDiscovered int `json:"filesDiscovered"`

	// FilesProcessed is the number of files read and validated, including
	// duplicates.
	FilesProcessed int `json:"filesProcessed"`

	// FilesFailed is the number of files that failed processing.
	FilesFailed int `json:"filesFailed"`

	// DuplicateFiles is the number of files skipped as duplicates.
	DuplicateFiles int `json:"duplicateFiles"`

	// NodesCreated is the number of nodes added to the graph.
	NodesCreated int `json:"nodesCreated"`

	// EdgesCreated is the total number of edges added to the graph.
	EdgesCreated int `json:"edgesCreated"`

	// EdgesDeferred is the number of edges whose target was not yet in the
	// graph during the first pass.
	EdgesDeferred int `json:"edgesDeferred"`

	// EdgesReconciled is the number of deferred edges whose target resolved
	// by the second pass.
	EdgesReconciled int `json:"edgesReconciled"`

	// DanglingEdges is the number of edges whose target never resolved.
	DanglingEdges int `json:"danglingEdges"`

	// DurationMilli is the total build time in milliseconds.
	DurationMilli int64 `json:"durationMilli"`
}

// BuildResult contains the result of a graph build operation.
//
// Build operations are resilient: individual file failures do not fail
// the entire build. Partial results are returned along with error
// information.
type BuildResult struct {
	// Graph is the constructed graph. Frozen, possibly partial.
	Graph *graph.Graph `json:"-"`

	// FileErrors contains errors for files that failed processing.
	// Files in this list are not represented in the graph.
	FileErrors []FileError `json:"fileErrors"`

	// EdgeErrors contains errors for edges that couldn't be created.
	EdgeErrors []EdgeError `json:"-"`

	// ReferenceIssues lists references left unresolved in non-strict mode.
	ReferenceIssues []FileReferenceIssue `json:"referenceIssues"`

	// Duplicates lists files skipped because their id was already taken.
	Duplicates []DuplicateComponent `json:"duplicates"`

	// Stats contains build statistics.
	Stats BuildStats `json:"stats"`

	// Incomplete is true if the build was cancelled via context.
	Incomplete bool `json:"incomplete"`
}

// HasErrors returns true if any file or edge errors occurred.
func (r *BuildResult) HasErrors() bool {
	return len(r.FileErrors) > 0 || len(r.EdgeErrors) > 0
}

// TotalErrors returns the total number of errors (file + edge).
func (r *BuildResult) TotalErrors() int {
	return len(r.FileErrors) + len(r.EdgeErrors)
}

// Success returns true if the build completed without errors and is complete.
func (r *BuildResult) Success() bool {
	return !r.Incomplete && !r.HasErrors()
}
