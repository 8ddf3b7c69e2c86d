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
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/semver"
)

// Diff compares a local graph against a runtime graph.
//
// Description:
//
//	Runs the comparison passes in a fixed order and concatenates their
//	findings, then appends CheckHealth(local):
//	  1. node-added (local only, info) and node-removed (runtime only, warning)
//	  2. node-changed: label or tags differ (info)
//	  3. version-drift: the version set of a logical component present in
//	     both graphs differs (warning)
//	  4. api-drift (error) and config-drift (warning) for equal ids with
//	     differing hashes
//	Within a pass, findings are ordered by component id.
//
// Inputs:
//
//	ctx - Used for tracing only.
//	local - The design-time graph. Must not be nil.
//	runtime - The deployed graph. Nil is treated as empty.
//
// Outputs:
//
//	*GraphDelta - Never nil.
func Diff(ctx context.Context, local, runtime *graph.Graph) *GraphDelta {
	return DiffDomain(ctx, local, runtime, "")
}

// DiffDomain is Diff restricted to the components of one domain.
//
// Description:
//
//	The comparison passes see only the local nodes in domain. CheckHealth
//	runs on the whole local graph, so dependencies that leave the domain
//	are still resolved, and its findings are kept when the dependent
//	component (or any cycle member) is in domain. The runtime graph is
//	expected to be narrowed to domain already. An empty domain is Diff.
//
// Inputs:
//
//	ctx - Used for tracing only.
//	local - The unfiltered design-time graph. Must not be nil.
//	runtime - The deployed graph of domain. Nil is treated as empty.
//	domain - Case-insensitive domain name. Empty means all domains.
//
// Outputs:
//
//	*GraphDelta - Never nil.
func DiffDomain(ctx context.Context, local, runtime *graph.Graph, domain string) *GraphDelta {
	ctx, span := startDiffSpan(ctx, local, runtime)
	defer span.End()
	start := time.Now()

	if runtime == nil {
		runtime = graph.NewGraph()
	}

	domain = strings.ToLower(strings.TrimSpace(domain))
	scoped := local
	if domain != "" {
		scoped = local.Filter(func(n *graph.Node) bool {
			return n.Ref.Domain == domain
		})
	}

	var violations []Violation
	violations = append(violations, structural(scoped, runtime)...)
	violations = append(violations, changed(scoped, runtime)...)
	violations = append(violations, versionDrift(scoped, runtime)...)
	violations = append(violations, hashDrift(scoped, runtime)...)
	for _, v := range CheckHealth(local) {
		if domain == "" || healthInDomain(v, scoped) {
			violations = append(violations, v)
		}
	}

	delta := NewGraphDelta(violations)
	setDiffSpanResult(span, delta)
	recordDiffMetrics(ctx, "diff", time.Since(start), delta)
	return delta
}

// Check runs CheckHealth with tracing and metrics and wraps the result.
func Check(ctx context.Context, g *graph.Graph) *GraphDelta {
	ctx, span := startDiffSpan(ctx, g, nil)
	defer span.End()
	start := time.Now()

	delta := NewGraphDelta(CheckHealth(g))
	setDiffSpanResult(span, delta)
	recordDiffMetrics(ctx, "check", time.Since(start), delta)
	return delta
}

// healthInDomain reports whether a health finding belongs to the domain
// graph: the dependent of an edge finding, or any member of a cycle.
func healthInDomain(v Violation, scoped *graph.Graph) bool {
	if v.Kind == KindCircularDependency {
		for _, id := range v.ComponentIDs {
			if scoped.HasNode(id) {
				return true
			}
		}
		return false
	}
	return len(v.ComponentIDs) > 0 && scoped.HasNode(v.ComponentIDs[0])
}

func structural(local, runtime *graph.Graph) []Violation {
	var out []Violation
	for _, id := range local.NodeIDs() {
		if !runtime.HasNode(id) {
			n, _ := local.Node(id)
			out = append(out, Violation{
				Kind:         KindNodeAdded,
				Severity:     SeverityInfo,
				ComponentIDs: []string{id},
				Message:      fmt.Sprintf("%s %s is not deployed", n.Type, id),
				Details:      map[string]any{"type": n.Type},
			})
		}
	}
	for _, id := range runtime.NodeIDs() {
		if !local.HasNode(id) {
			n, _ := runtime.Node(id)
			out = append(out, Violation{
				Kind:         KindNodeRemoved,
				Severity:     SeverityWarning,
				ComponentIDs: []string{id},
				Message:      fmt.Sprintf("%s %s is deployed but missing locally", n.Type, id),
				Details:      map[string]any{"type": n.Type},
			})
		}
	}
	return out
}

func changed(local, runtime *graph.Graph) []Violation {
	var out []Violation
	for _, id := range local.NodeIDs() {
		r, ok := runtime.Node(id)
		if !ok {
			continue
		}
		l, _ := local.Node(id)

		details := map[string]any{}
		if l.Label != r.Label {
			details["label"] = map[string]any{"local": l.Label, "runtime": r.Label}
		}
		if !slices.Equal(l.Tags, r.Tags) {
			details["tags"] = map[string]any{"local": l.Tags, "runtime": r.Tags}
		}
		if len(details) == 0 {
			continue
		}

		fields := make([]string, 0, len(details))
		for f := range details {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		out = append(out, Violation{
			Kind:         KindNodeChanged,
			Severity:     SeverityInfo,
			ComponentIDs: []string{id},
			Message:      fmt.Sprintf("%s changed: %s", id, strings.Join(fields, ", ")),
			Details:      details,
		})
	}
	return out
}

// versionsByLogicalKey groups node versions by their version-erased key.
func versionsByLogicalKey(g *graph.Graph) map[string][]string {
	out := make(map[string][]string)
	for _, n := range g.Nodes() {
		k := n.Ref.LogicalKey()
		out[k] = append(out[k], n.Ref.Version)
	}
	for k := range out {
		sortVersions(out[k])
	}
	return out
}

func versionDrift(local, runtime *graph.Graph) []Violation {
	localVersions := versionsByLogicalKey(local)
	runtimeVersions := versionsByLogicalKey(runtime)

	keys := make([]string, 0, len(localVersions))
	for k := range localVersions {
		if _, ok := runtimeVersions[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []Violation
	for _, k := range keys {
		lv, rv := localVersions[k], runtimeVersions[k]
		if slices.Equal(lv, rv) {
			continue
		}

		idSet := make(map[string]bool)
		for _, v := range lv {
			idSet[k+"@"+v] = true
		}
		for _, v := range rv {
			idSet[k+"@"+v] = true
		}
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		out = append(out, Violation{
			Kind:         KindVersionDrift,
			Severity:     SeverityWarning,
			ComponentIDs: ids,
			Message: fmt.Sprintf("%s versions differ: local [%s], runtime [%s]",
				k, strings.Join(lv, ", "), strings.Join(rv, ", ")),
			Details: map[string]any{
				"logicalKey":      k,
				"localVersions":   lv,
				"runtimeVersions": rv,
			},
		})
	}
	return out
}

// hashDrift compares hashes of nodes present in both graphs. A hash is only
// compared when both sides have one.
func hashDrift(local, runtime *graph.Graph) []Violation {
	var apiOut, configOut []Violation
	for _, id := range local.NodeIDs() {
		r, ok := runtime.Node(id)
		if !ok {
			continue
		}
		l, _ := local.Node(id)

		if l.APIHash != "" && r.APIHash != "" && l.APIHash != r.APIHash {
			apiOut = append(apiOut, Violation{
				Kind:         KindAPIDrift,
				Severity:     SeverityError,
				ComponentIDs: []string{id},
				Message:      fmt.Sprintf("%s contract changed without a version change", id),
				Details:      map[string]any{"localHash": l.APIHash, "runtimeHash": r.APIHash},
			})
		}
		if l.ConfigHash != "" && r.ConfigHash != "" && l.ConfigHash != r.ConfigHash {
			configOut = append(configOut, Violation{
				Kind:         KindConfigDrift,
				Severity:     SeverityWarning,
				ComponentIDs: []string{id},
				Message:      fmt.Sprintf("%s configuration differs from runtime", id),
				Details:      map[string]any{"localHash": l.ConfigHash, "runtimeHash": r.ConfigHash},
			})
		}
	}
	return append(apiOut, configOut...)
}

// sortVersions orders semver versions ascending; invalid versions sort
// lexically before valid ones.
func sortVersions(vs []string) {
	sort.Slice(vs, func(i, j int) bool {
		vi, vj := semver.Valid(vs[i]), semver.Valid(vs[j])
		switch {
		case vi && vj:
			if c := semver.Compare(vs[i], vs[j]); c != 0 {
				return c < 0
			}
			return vs[i] < vs[j]
		case vi != vj:
			return vj
		default:
			return vs[i] < vs[j]
		}
	})
}
