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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the /v1/flowgraph endpoints on rg.
//
// Endpoints:
//
//	POST /v1/flowgraph/build  - Build a workspace graph
//	POST /v1/flowgraph/check  - Health-check a workspace
//	POST /v1/flowgraph/diff   - Compare a workspace with an environment
//	POST /v1/flowgraph/impact - Impact cone of changed components
//	POST /v1/flowgraph/path   - Shortest dependent chain between two components
//	GET  /v1/flowgraph/health - Service and environment health
//
// Example:
//
//	v1 := router.Group("/v1")
//	flowgraph.RegisterRoutes(v1, flowgraph.NewHandlers(svc, logger))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	fg := rg.Group("/flowgraph")
	{
		fg.POST("/build", handlers.HandleBuild)
		fg.POST("/check", handlers.HandleCheck)
		fg.POST("/diff", handlers.HandleDiff)
		fg.POST("/impact", handlers.HandleImpact)
		fg.POST("/path", handlers.HandlePath)
		fg.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter returns a gin engine with recovery, OpenTelemetry middleware,
// the flowgraph routes and, when metricsHandler is non-nil, GET /metrics.
func NewRouter(serviceName string, handlers *Handlers, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	RegisterRoutes(router.Group("/v1"), handlers)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
	return router
}
