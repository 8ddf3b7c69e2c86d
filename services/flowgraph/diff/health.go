// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/semver"
)

// CheckHealth inspects a single graph.
//
// Description:
//
//	Reports, in order:
//	  1. semver-violation for every edge with a version range whose
//	     present target's version does not satisfy it. An unparseable
//	     range or version counts as a violation.
//	  2. missing-dependency for every edge whose target is absent.
//	  3. circular-dependency once per distinct cycle.
//	All findings have error severity.
//
// Inputs:
//
//	g - The graph to check. Must not be nil.
//
// Outputs:
//
//	[]Violation - Findings in the order above. Nil for a healthy graph.
func CheckHealth(g *graph.Graph) []Violation {
	var out []Violation
	out = append(out, semverViolations(g)...)
	out = append(out, missingDependencies(g)...)
	out = append(out, circularDependencies(g)...)
	return out
}

func semverViolations(g *graph.Graph) []Violation {
	var out []Violation
	for _, e := range g.Edges() {
		if e.VersionRange == "" {
			continue
		}
		target, ok := g.Node(e.To)
		if !ok {
			continue
		}

		version := target.Ref.Version
		ok, err := semver.Satisfies(version, e.VersionRange)
		if ok {
			continue
		}

		details := map[string]any{
			"from":         e.From,
			"to":           e.To,
			"versionRange": e.VersionRange,
			"version":      version,
		}
		msg := fmt.Sprintf("%s requires %s in range %q but found %s", e.From, target.Ref.LogicalKey(), e.VersionRange, version)
		if err != nil {
			details["error"] = err.Error()
			msg = fmt.Sprintf("%s has an unusable version constraint on %s: %v", e.From, e.To, err)
		}
		out = append(out, Violation{
			Kind:         KindSemverViolation,
			Severity:     SeverityError,
			ComponentIDs: []string{e.From, e.To},
			Message:      msg,
			Details:      details,
		})
	}
	return out
}

func missingDependencies(g *graph.Graph) []Violation {
	var out []Violation
	for _, e := range g.DanglingEdges() {
		out = append(out, Violation{
			Kind:         KindMissingDependency,
			Severity:     SeverityError,
			ComponentIDs: []string{e.From, e.To},
			Message:      fmt.Sprintf("%s depends on %s %s, which does not exist", e.From, e.Type, e.To),
			Details: map[string]any{
				"from":     e.From,
				"to":       e.To,
				"type":     e.Type,
				"required": e.Required,
			},
		})
	}
	return out
}

// FindCycles returns every distinct dependency cycle in g.
//
// Description:
//
//	Depth-first search from each unvisited node in id order, tracking the
//	current path. An edge back into the path closes a cycle. Cycles are
//	deduplicated by their sorted member set, so a→b→c→a is reported once
//	however it is entered. A self-dependency is a cycle of one.
//
// Outputs:
//
//	[][]string - Each cycle as the member ids in traversal order, starting
//	             at the node where the cycle was entered.
func FindCycles(g *graph.Graph) [][]string {
	const (
		unvisited = iota
		onStack
		done
	)

	state := make(map[string]int, g.NodeCount())
	var path []string
	pos := make(map[string]int)
	seen := make(map[string]bool)
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		pos[id] = len(path)
		path = append(path, id)

		for _, next := range sortedTargets(g, id) {
			switch state[next] {
			case unvisited:
				visit(next)
			case onStack:
				cycle := append([]string(nil), path[pos[next]:]...)
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		path = path[:len(path)-1]
		delete(pos, id)
		state[id] = done
	}

	for _, id := range g.NodeIDs() {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// sortedTargets returns the existing nodes id depends on, sorted.
func sortedTargets(g *graph.Graph, id string) []string {
	edges := g.Outgoing(id)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		if g.HasNode(e.To) {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

func cycleKey(cycle []string) string {
	members := append([]string(nil), cycle...)
	sort.Strings(members)
	return strings.Join(members, ",")
}

func circularDependencies(g *graph.Graph) []Violation {
	var out []Violation
	for _, cycle := range FindCycles(g) {
		chain := append(append([]string(nil), cycle...), cycle[0])
		out = append(out, Violation{
			Kind:         KindCircularDependency,
			Severity:     SeverityError,
			ComponentIDs: cycle,
			Message:      "circular dependency: " + strings.Join(chain, " -> "),
			Details: map[string]any{
				"length": len(cycle),
			},
		})
	}
	return out
}
