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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/flowgraph/services/flowgraph/changeset"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
	"github.com/AleutianAI/flowgraph/services/flowgraph/runtime"
	"github.com/AleutianAI/flowgraph/services/flowgraph/telemetry"
)

const requestIDHeader = "X-Request-ID"

// Handlers contains the HTTP handlers for the flowgraph API.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger.With(slog.String("component", "flowgraph_http"))}
}

// HandleBuild handles POST /v1/flowgraph/build.
//
// Response:
//
//	200 OK: BuildResponse
//	400 Bad Request: invalid body or root
func (h *Handlers) HandleBuild(c *gin.Context) {
	logger := h.requestLogger(c, "HandleBuild")

	var req BuildRequest
	if !bind(c, logger, &req) || !absoluteRoot(c, req.Root) {
		return
	}

	result, err := h.svc.Build(c.Request.Context(), req.Root)
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	resp := BuildResponse{
		Root:   req.Root,
		Nodes:  result.Graph.NodeCount(),
		Edges:  result.Graph.EdgeCount(),
		Result: result,
	}
	if req.IncludeGraph {
		resp.Graph = result.Graph
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCheck handles POST /v1/flowgraph/check.
//
// Response:
//
//	200 OK: CheckReport, also when the graph has findings
func (h *Handlers) HandleCheck(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCheck")

	var req CheckRequest
	if !bind(c, logger, &req) || !absoluteRoot(c, req.Root) {
		return
	}

	report, err := h.svc.Check(c.Request.Context(), req.Root)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleDiff handles POST /v1/flowgraph/diff.
//
// Response:
//
//	200 OK: DiffReport
//	404 Not Found: unknown environment or no runtime graph
func (h *Handlers) HandleDiff(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDiff")

	var req DiffRequest
	if !bind(c, logger, &req) || !absoluteRoot(c, req.Root) {
		return
	}

	report, err := h.svc.Diff(c.Request.Context(), req.Root, req.Environment, req.Domain)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleImpact handles POST /v1/flowgraph/impact.
//
// Response:
//
//	200 OK: ImpactReport
//	400 Bad Request: no components, bad patch or bad type name
func (h *Handlers) HandleImpact(c *gin.Context) {
	logger := h.requestLogger(c, "HandleImpact")

	var req ImpactRequest
	if !bind(c, logger, &req) || !absoluteRoot(c, req.Root) {
		return
	}

	var opts []impact.Option
	if req.MaxDepth != nil {
		opts = append(opts, impact.WithMaxDepth(*req.MaxDepth))
	}
	if req.IncludePaths != nil {
		opts = append(opts, impact.WithPaths(*req.IncludePaths))
	}
	if len(req.Types) > 0 {
		types := make([]graph.ComponentType, 0, len(req.Types))
		for _, name := range req.Types {
			t, err := graph.ParseComponentType(name)
			if err != nil {
				abort(c, http.StatusBadRequest, "INVALID_TYPE", err.Error())
				return
			}
			types = append(types, t)
		}
		opts = append(opts, impact.WithTypes(types...))
	}

	report, err := h.svc.Impact(c.Request.Context(), req.Root, ImpactTarget{
		IDs:       req.ComponentIDs,
		Patch:     []byte(req.Patch),
		Paths:     req.Paths,
		Threshold: req.Threshold,
	}, opts...)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandlePath handles POST /v1/flowgraph/path.
//
// Response:
//
//	200 OK: PathResponse
//	404 Not Found: no dependency chain connects the components
func (h *Handlers) HandlePath(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePath")

	var req PathRequest
	if !bind(c, logger, &req) || !absoluteRoot(c, req.Root) {
		return
	}

	path, err := h.svc.Path(c.Request.Context(), req.Root, req.From, req.To)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, PathResponse{Path: path})
}

// HandleHealth handles GET /v1/flowgraph/health. The service is healthy
// when every configured environment directory is reachable.
func (h *Handlers) HandleHealth(c *gin.Context) {
	envs := h.svc.Health(c.Request.Context())
	status := "healthy"
	for _, e := range envs {
		if !e.Reachable {
			status = "degraded"
			break
		}
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:       status,
		Version:      ServiceVersion,
		Environments: envs,
	})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := h.logger.With(
		slog.String("request_id", requestID(c)),
		slog.String("handler", handler),
	)
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

// requestID returns the caller's X-Request-ID or a new one, and echoes it.
func requestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDHeader); ok {
		return id.(string)
	}
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.Header(requestIDHeader, id)
	return id
}

func bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func absoluteRoot(c *gin.Context, root string) bool {
	if !filepath.IsAbs(root) {
		abort(c, http.StatusBadRequest, "INVALID_PATH", ErrRelativePath.Error())
		return false
	}
	return true
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code, RequestID: requestID(c)})
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	abort(c, status, code, err.Error())
}

// errorStatus maps service errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrRelativePath),
		errors.Is(err, ErrPathTraversal),
		errors.Is(err, ErrNotDirectory):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, changeset.ErrInvalidPatch):
		return http.StatusBadRequest, "INVALID_PATCH"
	case errors.Is(err, ErrNoStartComponents),
		errors.Is(err, impact.ErrNoStartNodes):
		return http.StatusBadRequest, "NO_COMPONENTS"
	case errors.Is(err, graph.ErrMaxNodesExceeded),
		errors.Is(err, graph.ErrMaxEdgesExceeded):
		return http.StatusRequestEntityTooLarge, "GRAPH_TOO_LARGE"
	case errors.Is(err, normalize.ErrUnresolvedReference):
		return http.StatusUnprocessableEntity, "UNRESOLVED_REFERENCE"
	case errors.Is(err, runtime.ErrUnknownEnvironment):
		return http.StatusNotFound, "UNKNOWN_ENVIRONMENT"
	case errors.Is(err, runtime.ErrNoRuntimeGraph):
		return http.StatusNotFound, "NO_RUNTIME_GRAPH"
	case errors.Is(err, impact.ErrNoPath):
		return http.StatusNotFound, "NO_PATH"
	case errors.Is(err, ErrBuildIncomplete):
		return http.StatusGatewayTimeout, "BUILD_INCOMPLETE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
