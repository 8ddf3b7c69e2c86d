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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/hashing"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
)

// testNode builds a node from an id like "core/sys-tasks/a@1.0.0".
func testNode(t *testing.T, id string, typ graph.ComponentType, def map[string]any) *graph.Node {
	t.Helper()
	ref, err := graph.ParseID(id)
	require.NoError(t, err)
	n := &graph.Node{
		ID:         ref.ID(),
		Ref:        ref,
		Type:       typ,
		Label:      ref.Key,
		Definition: def,
		Source:     graph.SourceLocal,
	}
	if def != nil {
		n.APIHash, n.ConfigHash, err = hashing.ComputeHashes(typ, def)
		require.NoError(t, err)
	}
	return n
}

type testEdge struct {
	from, to, versionRange string
}

func testGraph(t *testing.T, nodes []*graph.Node, edges ...testEdge) *graph.Graph {
	t.Helper()
	g := graph.NewGraph()
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range edges {
		edge := graph.NewEdge(e.from, e.to, graph.ComponentTypeTask)
		edge.VersionRange = e.versionRange
		require.NoError(t, g.AddEdge(edge))
	}
	g.Freeze()
	return g
}

func kinds(vs []Violation) []Kind {
	out := make([]Kind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

const (
	idA = "core/sys-tasks/a@1.0.0"
	idB = "core/sys-tasks/b@1.0.0"
	idC = "core/sys-tasks/c@1.0.0"
)

func TestDiff_IdenticalGraphs(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, map[string]any{"type": 1}),
		testNode(t, idB, graph.ComponentTypeTask, map[string]any{"type": 2}),
	}, testEdge{from: idA, to: idB})

	delta := Diff(ctx, g, g)
	assert.Empty(t, delta.Violations)
	assert.Equal(t, 0, delta.Stats.Total)
	assert.False(t, delta.HasErrors())
	assert.NotNil(t, delta.Errors)
}

func TestDiff_AddedRemovedAntiSymmetric(t *testing.T) {
	ctx := context.Background()
	local := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
		testNode(t, idB, graph.ComponentTypeTask, nil),
	})
	runtime := testGraph(t, []*graph.Node{
		testNode(t, idB, graph.ComponentTypeTask, nil),
		testNode(t, idC, graph.ComponentTypeTask, nil),
	})

	forward := Diff(ctx, local, runtime)
	backward := Diff(ctx, runtime, local)

	require.Len(t, forward.ByKind(KindNodeAdded), 1)
	require.Len(t, forward.ByKind(KindNodeRemoved), 1)
	assert.Equal(t, []string{idA}, forward.ByKind(KindNodeAdded)[0].ComponentIDs)
	assert.Equal(t, []string{idC}, forward.ByKind(KindNodeRemoved)[0].ComponentIDs)

	assert.Equal(t, forward.ByKind(KindNodeAdded)[0].ComponentIDs, backward.ByKind(KindNodeRemoved)[0].ComponentIDs)
	assert.Equal(t, forward.ByKind(KindNodeRemoved)[0].ComponentIDs, backward.ByKind(KindNodeAdded)[0].ComponentIDs)

	assert.Equal(t, SeverityInfo, forward.ByKind(KindNodeAdded)[0].Severity)
	assert.Equal(t, SeverityWarning, forward.ByKind(KindNodeRemoved)[0].Severity)
}

func TestDiff_NilRuntime(t *testing.T) {
	local := testGraph(t, []*graph.Node{testNode(t, idA, graph.ComponentTypeTask, nil)})
	delta := Diff(context.Background(), local, nil)
	assert.Equal(t, []Kind{KindNodeAdded}, kinds(delta.Violations))
}

func TestDiff_NodeChanged(t *testing.T) {
	l := testNode(t, idA, graph.ComponentTypeTask, nil)
	l.Tags = []string{"x", "y"}
	r := testNode(t, idA, graph.ComponentTypeTask, nil)
	r.Tags = []string{"y", "x"}

	delta := Diff(context.Background(), testGraph(t, []*graph.Node{l}), testGraph(t, []*graph.Node{r}))
	require.Equal(t, []Kind{KindNodeChanged}, kinds(delta.Violations))
	assert.Contains(t, delta.Violations[0].Details, "tags")
	assert.NotContains(t, delta.Violations[0].Details, "label")
}

func TestDiff_VersionDrift(t *testing.T) {
	local := testGraph(t, []*graph.Node{
		testNode(t, "core/sys-tasks/a@1.1.0", graph.ComponentTypeTask, nil),
		testNode(t, idB, graph.ComponentTypeTask, nil),
	})
	runtime := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
		testNode(t, idB, graph.ComponentTypeTask, nil),
	})

	delta := Diff(context.Background(), local, runtime)
	drift := delta.ByKind(KindVersionDrift)
	require.Len(t, drift, 1)
	assert.Equal(t, SeverityWarning, drift[0].Severity)
	assert.Equal(t, []string{idA, "core/sys-tasks/a@1.1.0"}, drift[0].ComponentIDs)
	assert.Equal(t, "core/sys-tasks/a", drift[0].Details["logicalKey"])
	assert.Equal(t, []string{"1.1.0"}, drift[0].Details["localVersions"])
	assert.Equal(t, []string{"1.0.0"}, drift[0].Details["runtimeVersions"])
}

func TestDiff_ConfigDriftOnly(t *testing.T) {
	const id = "core/sys-tasks/invalidate-cache@1.0.0"
	contract := func(ttl int) map[string]any {
		return map[string]any{
			"type":     6,
			"inputs":   []any{"key"},
			"outputs":  []any{"ok"},
			"required": []any{"key"},
			"config":   map[string]any{"ttl": ttl},
		}
	}
	local := testGraph(t, []*graph.Node{testNode(t, id, graph.ComponentTypeTask, contract(120))})
	runtime := testGraph(t, []*graph.Node{testNode(t, id, graph.ComponentTypeTask, contract(60))})

	delta := Diff(context.Background(), local, runtime)
	require.Equal(t, []Kind{KindConfigDrift}, kinds(delta.Violations))
	assert.Equal(t, SeverityWarning, delta.Violations[0].Severity)
	assert.Equal(t, []string{id}, delta.Violations[0].ComponentIDs)
	assert.Empty(t, delta.ByKind(KindAPIDrift))
}

func TestDiff_APIDrift(t *testing.T) {
	local := testGraph(t, []*graph.Node{testNode(t, idA, graph.ComponentTypeTask,
		map[string]any{"type": 6, "inputs": []any{"key", "region"}})})
	runtime := testGraph(t, []*graph.Node{testNode(t, idA, graph.ComponentTypeTask,
		map[string]any{"type": 6, "inputs": []any{"key"}})})

	delta := Diff(context.Background(), local, runtime)
	api := delta.ByKind(KindAPIDrift)
	require.Len(t, api, 1)
	assert.Equal(t, SeverityError, api[0].Severity)
	assert.True(t, delta.HasErrors())
}

func TestDiff_MissingHashIsNotDrift(t *testing.T) {
	local := testGraph(t, []*graph.Node{testNode(t, idA, graph.ComponentTypeTask, map[string]any{"type": 6})})
	runtime := testGraph(t, []*graph.Node{testNode(t, idA, graph.ComponentTypeTask, nil)})

	delta := Diff(context.Background(), local, runtime)
	assert.Empty(t, delta.Violations)
}

func TestDiff_ReferenceEncodingsAreEquivalent(t *testing.T) {
	ctx := context.Background()
	n := normalize.New()

	compact := map[string]any{
		"type": 1,
		"startTransition": map[string]any{
			"key":    "start",
			"target": "review",
			"schema": map[string]any{"ref": "Schemas/applicant.json"},
		},
		"states": []any{map[string]any{"key": "review"}},
	}
	structuredForm := map[string]any{
		"type": 1,
		"startTransition": map[string]any{
			"key":    "start",
			"target": "review",
			"schema": map[string]any{
				"key":     "applicant",
				"domain":  "core",
				"flow":    "sys-schemas",
				"version": "1.0.0",
			},
		},
		"states": []any{map[string]any{"key": "review"}},
	}

	build := func(def map[string]any) *graph.Graph {
		normalized, issues, err := n.NormalizeDefinition(ctx, def)
		require.NoError(t, err)
		require.Empty(t, issues)

		wf := testNode(t, "core/sys-flows/onboarding@1.0.0", graph.ComponentTypeWorkflow, normalized)
		g := graph.NewGraph()
		require.NoError(t, g.AddNode(wf))
		require.NoError(t, g.AddNode(testNode(t, "core/sys-schemas/applicant@1.0.0", graph.ComponentTypeSchema, nil)))
		for _, ref := range n.ExtractReferences(ctx, normalized) {
			require.NoError(t, g.AddEdge(graph.NewEdge(wf.ID, ref.ID, ref.Type)))
		}
		g.Freeze()
		return g
	}

	delta := Diff(ctx, build(compact), build(structuredForm))
	assert.Empty(t, delta.ByKind(KindNodeAdded))
	assert.Empty(t, delta.ByKind(KindNodeRemoved))
	assert.Empty(t, delta.ByKind(KindAPIDrift))
	assert.Empty(t, delta.ByKind(KindConfigDrift))
}

func TestNewGraphDelta_Partitions(t *testing.T) {
	delta := NewGraphDelta([]Violation{
		{Kind: KindNodeAdded, Severity: SeverityInfo},
		{Kind: KindAPIDrift, Severity: SeverityError},
		{Kind: KindNodeRemoved, Severity: SeverityWarning},
		{Kind: KindMissingDependency, Severity: SeverityError},
	})

	assert.Equal(t, 4, delta.Stats.Total)
	assert.Len(t, delta.Errors, 2)
	assert.Len(t, delta.Warnings, 1)
	assert.Len(t, delta.Info, 1)
	assert.Equal(t, 2, delta.Stats.BySeverity[SeverityError])
	assert.Equal(t, 1, delta.Stats.ByKind[KindAPIDrift])
	assert.Len(t, delta.AtLeast(SeverityWarning), 3)

	empty := NewGraphDelta(nil)
	assert.NotNil(t, empty.Violations)
	assert.Equal(t, 0, empty.Stats.Total)
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("warning")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestDiffDomain_HealthSeesWholeGraph(t *testing.T) {
	ctx := context.Background()
	const (
		idX     = "billing/sys-tasks/x@1.0.0"
		missing = "core/sys-tasks/gone@1.0.0"
	)
	local := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
		testNode(t, idX, graph.ComponentTypeTask, nil),
	},
		testEdge{from: idA, to: idX, versionRange: "^2.0.0"},
		testEdge{from: idX, to: idA},
		testEdge{from: idA, to: missing},
	)

	core := DiffDomain(ctx, local, nil, "Core")
	assert.Equal(t, []Kind{
		KindNodeAdded,
		KindSemverViolation,
		KindMissingDependency,
		KindCircularDependency,
	}, kinds(core.Violations))
	assert.Equal(t, []string{idA}, core.Violations[0].ComponentIDs)
	assert.Equal(t, []string{idA, idX}, core.Violations[1].ComponentIDs)

	billing := DiffDomain(ctx, local, nil, "billing")
	assert.Equal(t, []Kind{KindNodeAdded, KindCircularDependency}, kinds(billing.Violations))
	assert.Equal(t, []string{idX}, billing.Violations[0].ComponentIDs)

	assert.Equal(t, Diff(ctx, local, nil).Violations, DiffDomain(ctx, local, nil, " ").Violations)
}

func TestDiff_ViewConfigDrift(t *testing.T) {
	const idV = "core/sys-views/receipt@1.0.0"
	local := testGraph(t, []*graph.Node{
		testNode(t, idV, graph.ComponentTypeView, map[string]any{"layout": "grid"}),
	})
	runtime := testGraph(t, []*graph.Node{
		testNode(t, idV, graph.ComponentTypeView, map[string]any{"layout": "list"}),
	})

	delta := Diff(context.Background(), local, runtime)
	assert.Equal(t, []Kind{KindConfigDrift}, kinds(delta.Violations))
	assert.Empty(t, delta.Errors)
}
