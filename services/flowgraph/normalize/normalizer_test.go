// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

func TestNormalize_Forms(t *testing.T) {
	ctx := context.Background()
	n := New()

	tests := []struct {
		name string
		raw  any
		typ  graph.ComponentType
		want string
	}{
		{
			name: "structured",
			raw:  map[string]any{"key": "Foo", "domain": "CORE", "flow": "sys-tasks", "version": "1.0.0-RC"},
			typ:  graph.ComponentTypeTask,
			want: "core/sys-tasks/foo@1.0.0-RC",
		},
		{
			name: "structured without flow and version",
			raw:  map[string]any{"key": "foo", "domain": "core"},
			typ:  graph.ComponentTypeSchema,
			want: "core/sys-schemas/foo@1.0.0",
		},
		{
			name: "component ref value",
			raw:  graph.ComponentRef{Domain: "core", Flow: "sys-views", Key: "Home", Version: "2.0.0"},
			typ:  graph.ComponentTypeView,
			want: "core/sys-views/home@2.0.0",
		},
		{
			name: "compact string",
			raw:  "Billing/Sys-Functions/Charge@3.1.4",
			typ:  graph.ComponentTypeFunction,
			want: "billing/sys-functions/charge@3.1.4",
		},
		{
			name: "wrapped path",
			raw:  map[string]any{"ref": "Tasks/foo.json"},
			typ:  graph.ComponentTypeTask,
			want: "core/sys-tasks/foo@1.0.0",
		},
		{
			name: "wrapped compact",
			raw:  map[string]any{"ref": "core/sys-tasks/foo@1.2.0"},
			typ:  graph.ComponentTypeTask,
			want: "core/sys-tasks/foo@1.2.0",
		},
		{
			name: "nested directory uses top level",
			raw:  "Schemas/payments/card.json",
			typ:  graph.ComponentTypeTask,
			want: "core/sys-schemas/card@1.0.0",
		},
		{
			name: "unknown directory falls back to type flow",
			raw:  "Misc/thing.json",
			typ:  graph.ComponentTypeExtension,
			want: "core/sys-extensions/thing@1.0.0",
		},
		{
			name: "windows separators",
			raw:  `Workflows\sub\onboarding.json`,
			typ:  graph.ComponentTypeWorkflow,
			want: "core/sys-flows/onboarding@1.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := n.Normalize(ctx, tt.raw, tt.typ)
			require.NoError(t, err)
			require.NotNil(t, ref)
			assert.Equal(t, tt.want, ref.ID())
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	ctx := context.Background()
	n := New()

	for _, raw := range []any{
		map[string]any{"key": "Foo", "domain": "Core", "flow": "Sys-Tasks", "version": "1.0.0"},
		"core/sys-tasks/foo@1.0.0",
		map[string]any{"ref": "Tasks/foo.json"},
	} {
		first, err := n.Normalize(ctx, raw, graph.ComponentTypeTask)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := n.Normalize(ctx, *first, graph.ComponentTypeTask)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		third, err := n.Normalize(ctx, structured(first, nil), graph.ComponentTypeTask)
		require.NoError(t, err)
		assert.Equal(t, first, third)
	}
}

func TestNormalize_SoftFailure(t *testing.T) {
	ctx := context.Background()
	n := New()

	for _, raw := range []any{nil, 42, "", map[string]any{"name": "x"}, map[string]any{"ref": map[string]any{"ref": "a"}}} {
		ref, err := n.Normalize(ctx, raw, graph.ComponentTypeTask)
		assert.NoError(t, err)
		assert.Nil(t, ref)
	}
}

func TestNormalize_Strict(t *testing.T) {
	ctx := context.Background()
	n := New(WithStrict(true))

	_, err := n.Normalize(ctx, 42, graph.ComponentTypeTask)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedReference)
	assert.ErrorIs(t, err, ErrInvalidReference)

	var refErr *ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, graph.ComponentTypeTask, refErr.Type)
}

func TestNormalize_ResolverIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	calls := 0
	resolver := ResolverFunc(func(_ context.Context, ref string, _ graph.ComponentType) (*graph.ComponentRef, bool, error) {
		calls++
		if ref == "Tasks/foo.json" {
			return &graph.ComponentRef{Domain: "Ops", Key: "Foo", Version: "2.0.0"}, true, nil
		}
		return nil, false, nil
	})

	n := New(WithResolver(resolver))

	ref, err := n.Normalize(ctx, map[string]any{"ref": "Tasks/foo.json"}, graph.ComponentTypeTask)
	require.NoError(t, err)
	assert.Equal(t, "ops/sys-tasks/foo@2.0.0", ref.ID())

	ref, err = n.Normalize(ctx, "Tasks/missing.json", graph.ComponentTypeTask)
	require.NoError(t, err)
	assert.Nil(t, ref, "heuristic must not be used when a resolver is configured")
	assert.Equal(t, 2, calls)

	strict := New(WithResolver(resolver), WithStrict(true))
	_, err = strict.Normalize(ctx, "Tasks/missing.json", graph.ComponentTypeTask)
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestFileResolver(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Tasks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Tasks", "foo.json"),
		[]byte(`{"key":"foo","domain":"payments","flow":"sys-tasks","version":"1.4.0","attributes":{}}`), 0o644))

	n := New(WithResolver(NewFileResolver(root)))
	ctx := context.Background()

	ref, err := n.Normalize(ctx, map[string]any{"ref": "Tasks/foo.json"}, graph.ComponentTypeTask)
	require.NoError(t, err)
	assert.Equal(t, "payments/sys-tasks/foo@1.4.0", ref.ID())

	ref, err = n.Normalize(ctx, "Tasks/none.json", graph.ComponentTypeTask)
	require.NoError(t, err)
	assert.Nil(t, ref)

	_, _, err = NewFileResolver(root).Resolve(ctx, "../outside.json", graph.ComponentTypeTask)
	assert.Error(t, err)
}

func TestWithDirectoryFlows(t *testing.T) {
	n := New(WithDirectoryFlows([]DirectoryFlow{{Match: "jobs", Flow: "sys-tasks"}}), WithDefaultDomain("acme"))

	ref, err := n.Normalize(context.Background(), "CronJobs/nightly.json", graph.ComponentTypeWorkflow)
	require.NoError(t, err)
	assert.Equal(t, "acme/sys-tasks/nightly@1.0.0", ref.ID())
}
