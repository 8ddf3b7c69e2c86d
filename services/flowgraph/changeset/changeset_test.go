// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

const (
	taskID   = "core/sys-tasks/invalidate-cache@1.0.0"
	schemaID = "core/sys-schemas/applicant@1.0.0"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.NewGraph()
	for id, p := range map[string]string{
		taskID:   "Tasks/invalidate-cache.json",
		schemaID: "Schemas/applicant.json",
	} {
		ref, err := graph.ParseID(id)
		require.NoError(t, err)
		require.NoError(t, g.AddNode(&graph.Node{
			ID:       id,
			Ref:      ref,
			Type:     graph.ComponentTypeTask,
			Metadata: map[string]any{graph.MetadataPath: p},
		}))
	}
	g.Freeze()
	return g
}

const samplePatch = `diff --git a/Tasks/invalidate-cache.json b/Tasks/invalidate-cache.json
index 1111111..2222222 100644
--- a/Tasks/invalidate-cache.json
+++ b/Tasks/invalidate-cache.json
@@ -1,3 +1,3 @@
 {
-  "ttl": 60
+  "ttl": 120
 }
diff --git a/README.md b/README.md
index 3333333..4444444 100644
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-old
+new
`

func TestFromPatch(t *testing.T) {
	cs, err := FromPatch([]byte(samplePatch), testGraph(t))
	require.NoError(t, err)

	require.Len(t, cs.Files, 2)
	assert.Equal(t, ChangedFile{Path: "Tasks/invalidate-cache.json", Change: ChangeModified}, cs.Files[0])
	assert.Equal(t, []string{taskID}, cs.ComponentIDs)
	assert.Equal(t, []string{"README.md"}, cs.Unmatched)
}

func TestFromPatch_AddedAndDeleted(t *testing.T) {
	patch := `--- /dev/null
+++ b/Tasks/new-task.json
@@ -0,0 +1 @@
+{}
--- a/Schemas/applicant.json
+++ /dev/null
@@ -1 +0,0 @@
-{}
`
	cs, err := FromPatch([]byte(patch), testGraph(t))
	require.NoError(t, err)

	require.Len(t, cs.Files, 2)
	assert.Equal(t, ChangeAdded, cs.Files[0].Change)
	assert.Equal(t, ChangeDeleted, cs.Files[1].Change)
	assert.Equal(t, "Schemas/applicant.json", cs.Files[1].Path)
	assert.Equal(t, []string{schemaID}, cs.ComponentIDs)
	assert.Equal(t, []string{"Tasks/new-task.json"}, cs.Unmatched)
}

func TestFromPatch_Empty(t *testing.T) {
	cs, err := FromPatch(nil, testGraph(t))
	require.NoError(t, err)
	assert.Empty(t, cs.Files)
	assert.Empty(t, cs.ComponentIDs)
}

func TestFromPaths(t *testing.T) {
	cs := FromPaths([]string{
		"./Tasks/invalidate-cache.json",
		"repo/workspace/Schemas/applicant.json",
		"other.json",
	}, testGraph(t))

	assert.Equal(t, []string{schemaID, taskID}, cs.ComponentIDs)
	assert.Equal(t, []string{"other.json"}, cs.Unmatched)
}

func TestFromPaths_TopLevelDirectoryNamedLikeGitPrefix(t *testing.T) {
	ref, err := graph.ParseID(taskID)
	require.NoError(t, err)
	g := graph.NewGraph()
	require.NoError(t, g.AddNode(&graph.Node{
		ID:       taskID,
		Ref:      ref,
		Type:     graph.ComponentTypeTask,
		Metadata: map[string]any{graph.MetadataPath: "b/Tasks/invalidate-cache.json"},
	}))
	g.Freeze()

	cs := FromPaths([]string{"b/Tasks/invalidate-cache.json"}, g)
	assert.Equal(t, "b/Tasks/invalidate-cache.json", cs.Files[0].Path)
	assert.Equal(t, []string{taskID}, cs.ComponentIDs)
	assert.Empty(t, cs.Unmatched)

	patch := `--- a/b/Tasks/invalidate-cache.json
+++ b/b/Tasks/invalidate-cache.json
@@ -1 +1 @@
-{}
+{"ttl": 1}
`
	fromPatch, err := FromPatch([]byte(patch), g)
	require.NoError(t, err)
	assert.Equal(t, []string{taskID}, fromPatch.ComponentIDs)
	assert.Equal(t, "b/Tasks/invalidate-cache.json", fromPatch.Files[0].Path)
}
