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
)

func TestCheckHealth_Healthy(t *testing.T) {
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
		testNode(t, idB, graph.ComponentTypeTask, nil),
		testNode(t, idC, graph.ComponentTypeTask, nil),
	}, testEdge{from: idA, to: idB}, testEdge{from: idB, to: idC})

	assert.Empty(t, CheckHealth(g))
	assert.Empty(t, FindCycles(g))
}

func TestCheckHealth_SingleCycle(t *testing.T) {
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
		testNode(t, idB, graph.ComponentTypeTask, nil),
		testNode(t, idC, graph.ComponentTypeTask, nil),
	},
		testEdge{from: idA, to: idB},
		testEdge{from: idB, to: idC},
		testEdge{from: idC, to: idA},
	)

	vs := CheckHealth(g)
	require.Equal(t, []Kind{KindCircularDependency}, kinds(vs))
	assert.Equal(t, SeverityError, vs[0].Severity)
	assert.Equal(t, []string{idA, idB, idC}, vs[0].ComponentIDs)
	assert.Contains(t, vs[0].Message, idA+" -> "+idB+" -> "+idC+" -> "+idA)
}

func TestFindCycles_SelfLoopAndOverlapping(t *testing.T) {
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
		testNode(t, idB, graph.ComponentTypeTask, nil),
		testNode(t, idC, graph.ComponentTypeTask, nil),
	},
		testEdge{from: idA, to: idA},
		testEdge{from: idB, to: idC},
		testEdge{from: idC, to: idB},
	)

	cycles := FindCycles(g)
	assert.Equal(t, [][]string{{idA}, {idB, idC}}, cycles)
}

func TestCheckHealth_MissingDependency(t *testing.T) {
	const missing = "core/sys-tasks/gone@1.0.0"
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
	}, testEdge{from: idA, to: missing})

	vs := CheckHealth(g)
	require.Equal(t, []Kind{KindMissingDependency}, kinds(vs))
	assert.Equal(t, []string{idA, missing}, vs[0].ComponentIDs)
	assert.Equal(t, true, vs[0].Details["required"])
}

func TestCheckHealth_SemverViolation(t *testing.T) {
	tests := []struct {
		name      string
		rng       string
		wantCount int
		wantError bool
	}{
		{name: "satisfied caret", rng: "^1.0.0", wantCount: 0},
		{name: "unsatisfied caret", rng: "^2.0.0", wantCount: 1},
		{name: "unsatisfied comparator", rng: ">1.0.0", wantCount: 1},
		{name: "invalid range", rng: ">>nope", wantCount: 1, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGraph(t, []*graph.Node{
				testNode(t, idA, graph.ComponentTypeTask, nil),
				testNode(t, idB, graph.ComponentTypeTask, nil),
			}, testEdge{from: idA, to: idB, versionRange: tt.rng})

			vs := CheckHealth(g)
			require.Len(t, vs, tt.wantCount)
			if tt.wantCount == 0 {
				return
			}
			assert.Equal(t, KindSemverViolation, vs[0].Kind)
			assert.Equal(t, []string{idA, idB}, vs[0].ComponentIDs)
			_, hasErr := vs[0].Details["error"]
			assert.Equal(t, tt.wantError, hasErr)
		})
	}
}

func TestCheckHealth_SemverSkipsMissingTarget(t *testing.T) {
	const missing = "core/sys-tasks/gone@1.0.0"
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
	}, testEdge{from: idA, to: missing, versionRange: "^2.0.0"})

	assert.Equal(t, []Kind{KindMissingDependency}, kinds(CheckHealth(g)))
}

func TestCheck_WrapsHealth(t *testing.T) {
	g := testGraph(t, []*graph.Node{
		testNode(t, idA, graph.ComponentTypeTask, nil),
	}, testEdge{from: idA, to: idA})

	delta := Check(context.Background(), g)
	assert.Equal(t, 1, delta.Stats.ByKind[KindCircularDependency])
	assert.True(t, delta.HasErrors())
}
