// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the component dependency graph types.
//
// The graph package contains the value types shared by every analysis in
// flowgraph: component references, nodes, edges, and the Graph container
// with its outgoing/incoming adjacency indexes.
//
// # Edge Direction
//
// An edge always reads "From depends on To". Dependency extraction walks
// outgoing edges; impact analysis walks incoming edges.
//
// # Dangling Edges
//
// An edge's From node must exist when the edge is added. Its To node may
// be absent: such dangling edges are kept so that the diff engine can
// report them as missing dependencies instead of losing them.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent mutation. It is built by a single
// writer, then frozen. After Freeze(), it can be read from multiple
// goroutines.
//
// # Lifecycle
//
//  1. Create with NewGraph()
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to finalize
//  4. Query with Node(), Outgoing(), Incoming(), etc.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge's source node does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node with an ID that
	// already exists in the graph.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrDuplicateEdge is returned when adding an edge whose ordered
	// (from, to) pair is already present. Multi-edges collapse to the first.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrInvalidNode is returned for nil nodes or nodes whose ID does not
	// match the canonical form of their reference.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned for nil edges or edges with empty endpoints.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidComponentID is returned when a string is not of the form
	// domain/flow/key@version.
	ErrInvalidComponentID = errors.New("invalid component id")

	// ErrIndexInconsistent is returned by Validate when the adjacency
	// indexes disagree with the edge map.
	ErrIndexInconsistent = errors.New("adjacency index inconsistent")
)
