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
	"log/slog"
	"runtime"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
)

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseDiscovering indicates component files are being listed.
	ProgressPhaseDiscovering ProgressPhase = iota

	// ProgressPhaseLoading indicates files are being read and inserted.
	ProgressPhaseLoading

	// ProgressPhaseReconciling indicates deferred edges are being added.
	ProgressPhaseReconciling

	// ProgressPhaseFinalizing indicates the graph is being frozen.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseDiscovering:
		return "discovering"
	case ProgressPhaseLoading:
		return "loading"
	case ProgressPhaseReconciling:
		return "reconciling"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	Phase          ProgressPhase
	FilesTotal     int
	FilesProcessed int
	NodesCreated   int
	EdgesCreated   int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// DefaultSearchDirs returns the workspace directories scanned per type.
func DefaultSearchDirs() map[graph.ComponentType][]string {
	return map[graph.ComponentType][]string{
		graph.ComponentTypeTask:      {"Tasks"},
		graph.ComponentTypeSchema:    {"Schemas"},
		graph.ComponentTypeView:      {"Views"},
		graph.ComponentTypeFunction:  {"Functions"},
		graph.ComponentTypeExtension: {"Extensions"},
		graph.ComponentTypeWorkflow:  {"Workflows"},
	}
}

// DefaultExcludedSuffixes returns the side-file suffixes never treated as
// components.
func DefaultExcludedSuffixes() []string {
	return []string{".diagram.json", ".layout.json"}
}

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Root is the workspace root directory.
	Root string

	// Types limits the build to these component types.
	// Default: all types.
	Types []graph.ComponentType

	// SearchDirs lists the root-relative directories scanned per type.
	SearchDirs map[graph.ComponentType][]string

	// ExcludedSuffixes are file name suffixes skipped during discovery.
	ExcludedSuffixes []string

	// Hashing enables API and config hash computation.
	// Default: true
	Hashing bool

	// WorkerCount is the number of parallel file readers.
	// Default: runtime.NumCPU()
	WorkerCount int

	// ProgressCallback is called with build progress. May be nil.
	ProgressCallback ProgressFunc

	// Strict aborts the build on the first unresolved reference.
	Strict bool

	// Normalizer resolves references. Default: a normalizer with a
	// FileResolver rooted at Root.
	Normalizer *normalize.Normalizer

	// Source is stamped on every node.
	// Default: graph.SourceLocal
	Source graph.Source

	// Logger receives per-file warnings.
	// Default: slog.Default()
	Logger *slog.Logger

	// MaxNodes is the maximum number of nodes (passed to Graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to Graph).
	MaxEdges int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Types:            graph.AllComponentTypes(),
		SearchDirs:       DefaultSearchDirs(),
		ExcludedSuffixes: DefaultExcludedSuffixes(),
		Hashing:          true,
		WorkerCount:      runtime.NumCPU(),
		Source:           graph.SourceLocal,
		MaxNodes:         graph.DefaultMaxNodes,
		MaxEdges:         graph.DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithRoot sets the workspace root.
func WithRoot(root string) BuilderOption {
	return func(o *BuilderOptions) {
		o.Root = root
	}
}

// WithTypes limits the build to the given component types.
func WithTypes(types ...graph.ComponentType) BuilderOption {
	return func(o *BuilderOptions) {
		o.Types = types
	}
}

// WithSearchDirs overrides the search directories of individual types.
func WithSearchDirs(dirs map[graph.ComponentType][]string) BuilderOption {
	return func(o *BuilderOptions) {
		for t, d := range dirs {
			o.SearchDirs[t] = d
		}
	}
}

// WithExcludedSuffixes replaces the excluded side-file suffixes.
func WithExcludedSuffixes(suffixes ...string) BuilderOption {
	return func(o *BuilderOptions) {
		o.ExcludedSuffixes = suffixes
	}
}

// WithHashing enables or disables hash computation.
func WithHashing(enabled bool) BuilderOption {
	return func(o *BuilderOptions) {
		o.Hashing = enabled
	}
}

// WithWorkerCount sets the number of parallel readers.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithStrict enables strict reference checking.
func WithStrict(strict bool) BuilderOption {
	return func(o *BuilderOptions) {
		o.Strict = strict
	}
}

// WithNormalizer sets the reference normalizer.
func WithNormalizer(n *normalize.Normalizer) BuilderOption {
	return func(o *BuilderOptions) {
		o.Normalizer = n
	}
}

// WithSource sets the source stamped on every node.
func WithSource(s graph.Source) BuilderOption {
	return func(o *BuilderOptions) {
		o.Source = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// WithMaxNodes sets the maximum number of nodes.
func WithMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges.
func WithMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}
