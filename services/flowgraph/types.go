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
	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// BuildRequest is the body of POST /v1/flowgraph/build.
type BuildRequest struct {
	// Root is the absolute workspace directory.
	Root string `json:"root" binding:"required"`

	// IncludeGraph adds the graph document to the response.
	IncludeGraph bool `json:"includeGraph"`
}

// BuildResponse is the response of POST /v1/flowgraph/build.
type BuildResponse struct {
	Root   string               `json:"root"`
	Nodes  int                  `json:"nodes"`
	Edges  int                  `json:"edges"`
	Result *builder.BuildResult `json:"result"`
	Graph  *graph.Graph         `json:"graph,omitempty"`
}

// CheckRequest is the body of POST /v1/flowgraph/check.
type CheckRequest struct {
	Root string `json:"root" binding:"required"`
}

// DiffRequest is the body of POST /v1/flowgraph/diff.
type DiffRequest struct {
	Root        string `json:"root" binding:"required"`
	Environment string `json:"environment" binding:"required"`
	Domain      string `json:"domain"`
}

// ImpactRequest is the body of POST /v1/flowgraph/impact. At least one of
// ComponentIDs, Patch and Paths must name a component.
type ImpactRequest struct {
	Root         string   `json:"root" binding:"required"`
	ComponentIDs []string `json:"componentIds"`

	// Patch is a unified diff whose touched files select components.
	Patch string   `json:"patch"`
	Paths []string `json:"paths"`

	MaxDepth     *int     `json:"maxDepth" binding:"omitempty,gte=0"`
	Types        []string `json:"types"`
	IncludePaths *bool    `json:"includePaths"`
	Threshold    string   `json:"threshold" binding:"omitempty,oneof=low medium high critical LOW MEDIUM HIGH CRITICAL"`
}

// PathRequest is the body of POST /v1/flowgraph/path.
type PathRequest struct {
	Root string `json:"root" binding:"required"`
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// PathResponse is the response of POST /v1/flowgraph/path.
type PathResponse struct {
	Path []string `json:"path"`
}

// HealthResponse is the response of GET /v1/flowgraph/health.
type HealthResponse struct {
	Status       string              `json:"status"`
	Version      string              `json:"version"`
	Environments []EnvironmentStatus `json:"environments"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	RequestID string `json:"requestId,omitempty"`
}
