// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flowgraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/services/flowgraph/changeset"
	"github.com/AleutianAI/flowgraph/services/flowgraph/diff"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
	"github.com/AleutianAI/flowgraph/services/flowgraph/runtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T, envs map[string]string) *gin.Engine {
	t.Helper()
	svc := newTestService(t, envs, nil)
	return NewRouter("flowgraph-test", NewHandlers(svc, nil), nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleBuild(t *testing.T) {
	router := setupTestRouter(t, nil)
	root := newWorkspace(t)

	t.Run("summary", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/build", BuildRequest{Root: root})
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, root, resp["root"])
		assert.EqualValues(t, 3, resp["nodes"])
		assert.EqualValues(t, 2, resp["edges"])
		assert.NotContains(t, resp, "graph")
		assert.Contains(t, resp, "result")
	})

	t.Run("with graph", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/build", BuildRequest{Root: root, IncludeGraph: true})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Graph *graph.Graph `json:"graph"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Graph)
		assert.Equal(t, 3, resp.Graph.NodeCount())
	})

	t.Run("relative root", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/build", BuildRequest{Root: "workspace"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_PATH", decodeError(t, w).Code)
	})

	t.Run("missing root", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/build", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})

	t.Run("not a directory", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/build",
			BuildRequest{Root: filepath.Join(root, "missing")})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_PATH", decodeError(t, w).Code)
	})
}

func TestHandleCheck(t *testing.T) {
	router := setupTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/check", CheckRequest{Root: newWorkspace(t)})
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Delta *diff.GraphDelta `json:"delta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.NotNil(t, report.Delta)
	assert.Len(t, report.Delta.ByKind(diff.KindMissingDependency), 1)
}

func TestHandleDiff(t *testing.T) {
	router := setupTestRouter(t, map[string]string{"prod": deployedEnvironment(t)})
	root := newWorkspace(t)

	t.Run("configured environment", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/diff", DiffRequest{Root: root, Environment: "prod"})
		require.Equal(t, http.StatusOK, w.Code)

		var report DiffReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, RuntimeFromDirectory, report.RuntimeSource)
		assert.Len(t, report.Delta.ByKind(diff.KindNodeAdded), 1)
	})

	t.Run("unknown environment", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/diff", DiffRequest{Root: root, Environment: "qa"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "UNKNOWN_ENVIRONMENT", decodeError(t, w).Code)
	})
}

func TestHandleImpact(t *testing.T) {
	router := setupTestRouter(t, nil)
	root := newWorkspace(t)

	t.Run("ids", func(t *testing.T) {
		depth := 1
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/impact", ImpactRequest{
			Root:         root,
			ComponentIDs: []string{chargeID},
			MaxDepth:     &depth,
			Types:        []string{"workflows"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var report ImpactReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, []string{checkoutID}, report.Result.IDs())
		assert.Equal(t, impact.RiskLow, report.Result.Stats.Risk)
		assert.False(t, report.Exceeded)
	})

	t.Run("no components", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/impact", ImpactRequest{Root: root})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "NO_COMPONENTS", decodeError(t, w).Code)
	})

	t.Run("bad type", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/impact", ImpactRequest{
			Root: root, ComponentIDs: []string{chargeID}, Types: []string{"gadget"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_TYPE", decodeError(t, w).Code)
	})

	t.Run("bad threshold", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/impact", ImpactRequest{
			Root: root, ComponentIDs: []string{chargeID}, Threshold: "extreme",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})
}

func TestHandlePath(t *testing.T) {
	router := setupTestRouter(t, nil)
	root := newWorkspace(t)

	w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/path", PathRequest{Root: root, From: chargeID, To: checkoutID})
	require.Equal(t, http.StatusOK, w.Code)
	var resp PathResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{chargeID, checkoutID}, resp.Path)

	w = doJSON(t, router, http.MethodPost, "/v1/flowgraph/path", PathRequest{Root: root, From: notifyID, To: chargeID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_PATH", decodeError(t, w).Code)
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router := setupTestRouter(t, map[string]string{"prod": deployedEnvironment(t)})
		w := doJSON(t, router, http.MethodGet, "/v1/flowgraph/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, ServiceVersion, resp.Version)
		require.Len(t, resp.Environments, 1)
		assert.True(t, resp.Environments[0].Reachable)
	})

	t.Run("degraded", func(t *testing.T) {
		router := setupTestRouter(t, map[string]string{"prod": filepath.Join(t.TempDir(), "gone")})
		w := doJSON(t, router, http.MethodGet, "/v1/flowgraph/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
	})
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter(t, nil)

	t.Run("echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/flowgraph/build", bytes.NewBufferString(`{"root": "rel"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(requestIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
		assert.Equal(t, "req-123", decodeError(t, w).RequestID)
	})

	t.Run("generates one", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/flowgraph/check", CheckRequest{Root: "rel"})
		id := w.Header().Get(requestIDHeader)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, decodeError(t, w).RequestID)
	})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrRelativePath, http.StatusBadRequest, "INVALID_PATH"},
		{ErrPathTraversal, http.StatusBadRequest, "INVALID_PATH"},
		{changeset.ErrInvalidPatch, http.StatusBadRequest, "INVALID_PATCH"},
		{impact.ErrNoStartNodes, http.StatusBadRequest, "NO_COMPONENTS"},
		{graph.ErrMaxNodesExceeded, http.StatusRequestEntityTooLarge, "GRAPH_TOO_LARGE"},
		{runtime.ErrNoRuntimeGraph, http.StatusNotFound, "NO_RUNTIME_GRAPH"},
		{ErrBuildIncomplete, http.StatusGatewayTimeout, "BUILD_INCOMPLETE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := errorStatus(fmt.Errorf("wrapped: %w", tt.err))
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
