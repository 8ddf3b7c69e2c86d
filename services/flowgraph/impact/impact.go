// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// contextCheckInterval is how many dequeued nodes pass between
// cancellation checks.
const contextCheckInterval = 100

// ImpactCone computes everything affected by a change to startIDs.
//
// Description:
//
//	Breadth-first traversal over incoming edges, seeded with every start
//	id at depth 0. Each component is visited once; the first origin to
//	reach it wins, which by BFS is a nearest one. A dequeued component
//	deeper than or at MaxDepth is reported but not expanded. The type
//	filter only decides what is reported; Stats.Dependents and the risk
//	count every dependent reached.
//
//	Start ids that are not graph nodes are reported with Missing set and
//	still expanded, since dangling edges may point at them.
//
// Inputs:
//
//	ctx - Checked every 100 nodes. Cancellation truncates the result.
//	g - The graph to traverse. Not modified.
//	startIDs - The changed components. Duplicates are ignored.
//	opts - Analysis options.
//
// Outputs:
//
//	*Result - The impact cone.
//	error - ErrNoStartNodes if startIDs is empty.
func ImpactCone(ctx context.Context, g *graph.Graph, startIDs []string, opts ...Option) (*Result, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if len(startIDs) == 0 {
		return nil, ErrNoStartNodes
	}

	ctx, span := startAnalysisSpan(ctx, startIDs)
	defer span.End()
	start := time.Now()

	result := cone(ctx, g, startIDs, options)

	setAnalysisSpanResult(span, result)
	recordAnalysisMetrics(ctx, time.Since(start), result)
	return result, nil
}

func cone(ctx context.Context, g *graph.Graph, startIDs []string, options Options) *Result {
	type queueItem struct {
		id     string
		depth  int
		origin string
	}

	include := typeFilter(options.IncludeTypes)
	result := &Result{
		AffectedComponents: make([]Affected, 0),
		Stats: Stats{
			ByDepth: make(map[int]int),
			ByType:  make(map[graph.ComponentType]int),
		},
	}
	if options.IncludePaths {
		result.DependencyPaths = make(map[string][]string)
	}

	visited := make(map[string]bool)
	parent := make(map[string]string)
	queue := make([]queueItem, 0, len(startIDs))
	for _, id := range startIDs {
		if visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, queueItem{id: id, depth: 0, origin: id})
	}

	checkCounter := 0
	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				result.Truncated = true
				break
			}
		}

		item := queue[0]
		queue = queue[1:]

		a := Affected{ID: item.id, Depth: item.depth, Origin: item.origin}
		if n, ok := g.Node(item.id); ok {
			a.Type = n.Type
		} else {
			a.Missing = true
		}

		if a.Depth > 0 {
			result.Stats.Dependents++
		}
		if include(a) {
			result.AffectedComponents = append(result.AffectedComponents, a)
			result.Stats.ByDepth[a.Depth]++
			if a.Type != "" {
				result.Stats.ByType[a.Type]++
			}
			if a.Depth > result.Stats.MaxDepthReached {
				result.Stats.MaxDepthReached = a.Depth
			}
			if options.IncludePaths {
				result.DependencyPaths[a.ID] = pathTo(parent, a.ID)
			}
		}

		if options.MaxDepth > 0 && item.depth >= options.MaxDepth {
			continue
		}
		for _, from := range dependents(g, item.id) {
			if visited[from] {
				continue
			}
			visited[from] = true
			parent[from] = item.id
			queue = append(queue, queueItem{id: from, depth: item.depth + 1, origin: item.origin})
		}
	}

	result.Stats.Total = len(result.AffectedComponents)
	result.Stats.Risk = ClassifyRisk(result.Stats.Dependents)
	return result
}

// dependents returns the sorted, distinct ids that depend on id.
func dependents(g *graph.Graph, id string) []string {
	edges := g.Incoming(id)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.From)
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// pathTo walks parent links back to the origin and returns the path
// origin first.
func pathTo(parent map[string]string, id string) []string {
	path := []string{id}
	for {
		p, ok := parent[id]
		if !ok {
			break
		}
		path = append(path, p)
		id = p
	}
	slices.Reverse(path)
	return path
}

func typeFilter(types []graph.ComponentType) func(Affected) bool {
	if len(types) == 0 {
		return func(Affected) bool { return true }
	}
	allowed := make(map[graph.ComponentType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(a Affected) bool { return allowed[a.Type] }
}

// DirectDependents returns the components that depend on id directly,
// sorted.
func DirectDependents(g *graph.Graph, id string) []string {
	return dependents(g, id)
}

// TransitiveDependents returns every component that depends on any of ids,
// directly or indirectly. Origins are excluded and paths are not recorded.
func TransitiveDependents(ctx context.Context, g *graph.Graph, ids []string) ([]Affected, error) {
	if len(ids) == 0 {
		return nil, ErrNoStartNodes
	}
	r := cone(ctx, g, ids, Options{})
	out := make([]Affected, 0, r.Stats.Dependents)
	for _, a := range r.AffectedComponents {
		if a.Depth > 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

// ShortestPath returns the shortest chain of dependents leading from one
// component to another.
//
// Description:
//
//	BFS over incoming edges starting at from, stopping when to is
//	dequeued. The returned path starts at from and ends at to; each
//	element depends on the one before it. Ties between equal-length paths
//	resolve to the lexically smaller predecessor.
//
// Outputs:
//
//	[]string - The path. A single element when from == to.
//	error - ErrNoPath if to does not depend on from.
func ShortestPath(ctx context.Context, g *graph.Graph, from, to string) ([]string, error) {
	visited := map[string]bool{from: true}
	parent := make(map[string]string)
	queue := []string{from}

	checkCounter := 0
	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		id := queue[0]
		queue = queue[1:]
		if id == to {
			return pathTo(parent, id), nil
		}
		for _, next := range dependents(g, id) {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = id
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%w: %s does not depend on %s", ErrNoPath, to, from)
}
