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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
)

// Builder constructs component graphs from a workspace.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
	logger  *slog.Logger
}

// NewBuilder creates a new Builder with the given options.
//
// Example:
//
//	b := builder.NewBuilder(
//	    builder.WithRoot("/path/to/workspace"),
//	    builder.WithTypes(graph.ComponentTypeWorkflow, graph.ComponentTypeTask),
//	)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	if len(options.Types) == 0 {
		options.Types = graph.AllComponentTypes()
	}
	if options.Source == "" {
		options.Source = graph.SourceLocal
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		options: options,
		logger:  logger.With(slog.String("component", "builder")),
	}
}

// Options returns a copy of the builder's configuration.
func (b *Builder) Options() BuilderOptions {
	return b.options
}

// pendingEdge is a reference whose target was absent during pass one.
type pendingEdge struct {
	from string
	ref  normalize.Reference
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	graph     *graph.Graph
	result    *BuildResult
	keptPaths map[string]string
	deferred  []pendingEdge
	startTime time.Time
}

// Build constructs a graph from the workspace root.
//
// Description:
//
//	Discovers component files, reads them in parallel and inserts the
//	nodes in discovery order. Edges are added in two passes so that the
//	final edge set does not depend on the order files were discovered.
//	The build is resilient to individual file failures.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked between files.
//
// Outputs:
//
//	*BuildResult - Contains the graph, any errors, and build statistics.
//	error - Non-nil for a missing root or, in strict mode, an unresolved
//	        reference. Cancellation returns the partial result and nil.
//
// Build Phases:
//
//  1. DISCOVER: List component files per type
//  2. LOAD: Read and validate files in parallel, insert nodes and
//     resolvable edges in discovery order
//  3. RECONCILE: Add every deferred edge, resolved or dangling
//  4. FINALIZE: Freeze graph and compute statistics
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	if b.options.Root == "" {
		return nil, ErrRootNotSet
	}
	root, err := filepath.Abs(b.options.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	ctx, span := startBuildSpan(ctx, root)
	defer span.End()

	state := &buildState{
		graph: graph.NewGraph(
			graph.WithMaxNodes(b.options.MaxNodes),
			graph.WithMaxEdges(b.options.MaxEdges),
		),
		result: &BuildResult{
			FileErrors: make([]FileError, 0),
			EdgeErrors: make([]EdgeError, 0),
		},
		keptPaths: make(map[string]string),
		startTime: time.Now(),
	}
	state.result.Graph = state.graph

	// Phase 1: Discover
	b.reportProgress(state, ProgressPhaseDiscovering, 0, 0)
	files, err := b.discover(ctx, state, root)
	state.result.Stats.FilesDiscovered = len(files)
	if err != nil {
		if ctx.Err() != nil {
			return b.finish(ctx, span, state, true), nil
		}
		return nil, fmt.Errorf("discover: %w", err)
	}
	span.AddEvent("discovered")

	// Phase 2: Load
	if err := b.loadPhase(ctx, state, root, files); err != nil {
		if ctx.Err() != nil {
			return b.finish(ctx, span, state, true), nil
		}
		recordBuildMetrics(ctx, time.Since(state.startTime), 0, 0, false)
		span.RecordError(err)
		return nil, err
	}

	// Phase 3: Reconcile
	if err := b.reconcilePhase(ctx, state, len(files)); err != nil {
		return b.finish(ctx, span, state, true), nil
	}

	// Phase 4: Finalize
	b.reportProgress(state, ProgressPhaseFinalizing, len(files), len(files))
	return b.finish(ctx, span, state, false), nil
}

// normalizer returns the configured normalizer, or one resolving file
// references against root.
func (b *Builder) normalizer(root string) *normalize.Normalizer {
	if b.options.Normalizer != nil {
		return b.options.Normalizer
	}
	return normalize.New(
		normalize.WithResolver(normalize.NewFileResolver(root)),
		normalize.WithStrict(b.options.Strict),
	)
}

// loadPhase reads files in parallel and inserts them in discovery order.
//
// Each reader writes only its own slot of the loaded slice; the graph is
// mutated solely by this goroutine after the readers finish.
func (b *Builder) loadPhase(ctx context.Context, state *buildState, root string, files []componentFile) error {
	n := b.normalizer(root)
	loaded := make([]loadedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.options.WorkerCount)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				loaded[i] = loadedFile{file: f, err: err}
				return nil
			}
			lf, err := b.load(gctx, n, f)
			loaded[i] = lf
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, lf := range loaded {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.insert(state, lf)
		if (i+1)%100 == 0 {
			b.reportProgress(state, ProgressPhaseLoading, len(files), i+1)
		}
	}
	b.reportProgress(state, ProgressPhaseLoading, len(files), len(files))
	return nil
}

// insert adds one loaded file to the graph.
func (b *Builder) insert(state *buildState, lf loadedFile) {
	path := lf.file.RelPath
	if lf.err != nil {
		b.recordFileError(state, path, lf.err)
		return
	}
	state.result.Stats.FilesProcessed++

	node := lf.node
	if kept, exists := state.keptPaths[node.ID]; exists {
		state.result.Duplicates = append(state.result.Duplicates, DuplicateComponent{
			ID:       node.ID,
			FilePath: path,
			KeptPath: kept,
		})
		state.result.Stats.DuplicateFiles++
		b.logger.Warn("duplicate component skipped",
			slog.String("component_id", node.ID),
			slog.String("file", path),
			slog.String("kept", kept),
		)
		return
	}

	if err := state.graph.AddNode(node); err != nil {
		b.recordFileError(state, path, err)
		return
	}
	state.keptPaths[node.ID] = path
	state.result.Stats.NodesCreated++

	for _, issue := range lf.issues {
		state.result.ReferenceIssues = append(state.result.ReferenceIssues, FileReferenceIssue{
			FilePath:       path,
			ReferenceIssue: issue,
		})
		b.logger.Warn("unresolved reference",
			slog.String("file", path),
			slog.String("location", issue.Location),
			slog.String("reason", issue.Reason),
		)
	}

	for _, ref := range lf.refs {
		if !state.graph.HasNode(ref.ID) {
			state.deferred = append(state.deferred, pendingEdge{from: node.ID, ref: ref})
			state.result.Stats.EdgesDeferred++
			continue
		}
		b.addEdge(state, node.ID, ref)
	}
}

// reconcilePhase adds every deferred edge. Runs strictly after all nodes
// are inserted.
func (b *Builder) reconcilePhase(ctx context.Context, state *buildState, fileCount int) error {
	b.reportProgress(state, ProgressPhaseReconciling, fileCount, fileCount)
	for _, p := range state.deferred {
		if err := ctx.Err(); err != nil {
			return err
		}
		if state.graph.HasEdge(p.from, p.ref.ID) {
			continue
		}
		if !b.addEdge(state, p.from, p.ref) {
			continue
		}
		if state.graph.HasNode(p.ref.ID) {
			state.result.Stats.EdgesReconciled++
		} else {
			state.result.Stats.DanglingEdges++
		}
	}
	return nil
}

func (b *Builder) addEdge(state *buildState, from string, ref normalize.Reference) bool {
	edge := graph.NewEdge(from, ref.ID, ref.Type)
	edge.Required = ref.Required
	edge.VersionRange = ref.VersionRange
	if err := state.graph.AddEdge(edge); err != nil {
		state.result.EdgeErrors = append(state.result.EdgeErrors, EdgeError{
			FromID: from,
			ToID:   ref.ID,
			Err:    err,
		})
		return false
	}
	state.result.Stats.EdgesCreated++
	return true
}

func (b *Builder) recordFileError(state *buildState, path string, err error) {
	state.result.FileErrors = append(state.result.FileErrors, FileError{
		FilePath: path,
		Err:      err,
	})
	state.result.Stats.FilesFailed++
	b.logger.Warn("component file skipped",
		slog.String("file", path),
		slog.String("error", err.Error()),
	)
}

// finish freezes the graph and records statistics, span and metrics.
func (b *Builder) finish(ctx context.Context, span trace.Span, state *buildState, incomplete bool) *BuildResult {
	state.graph.Freeze()
	duration := time.Since(state.startTime)
	state.result.Stats.DurationMilli = duration.Milliseconds()
	state.result.Incomplete = incomplete

	stats := state.result.Stats
	setBuildSpanResult(span, stats.NodesCreated, stats.EdgesCreated, incomplete)
	recordBuildMetrics(ctx, duration, stats.NodesCreated, stats.EdgesCreated, !incomplete)

	b.logger.Info("graph built",
		slog.Int("files_discovered", stats.FilesDiscovered),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int("nodes", stats.NodesCreated),
		slog.Int("edges", stats.EdgesCreated),
		slog.Int("dangling_edges", stats.DanglingEdges),
		slog.Bool("incomplete", incomplete),
		slog.Int64("duration_ms", stats.DurationMilli),
	)
	return state.result
}

// reportProgress calls the progress callback if set.
func (b *Builder) reportProgress(state *buildState, phase ProgressPhase, total, processed int) {
	if b.options.ProgressCallback == nil {
		return
	}
	b.options.ProgressCallback(BuildProgress{
		Phase:          phase,
		FilesTotal:     total,
		FilesProcessed: processed,
		NodesCreated:   state.result.Stats.NodesCreated,
		EdgesCreated:   state.result.Stats.EdgesCreated,
	})
}
