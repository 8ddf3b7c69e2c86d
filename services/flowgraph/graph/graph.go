// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"sort"
	"time"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	// Default: 1,000,000
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	// Default: 10,000,000
	MaxEdges int
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}

// Graph is the component dependency graph.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. It is designed
//	for single-writer access during build, then read-only after Freeze().
//	Analyses borrow a Graph for the duration of a call and never mutate it.
type Graph struct {
	// nodes maps component id to Node.
	nodes map[string]*Node

	// edges maps edge id to Edge.
	edges map[string]*Edge

	// outgoing maps a source id to the edges leaving it, in insertion order.
	outgoing map[string][]*Edge

	// incoming maps a target id to the edges entering it, in insertion order.
	// Keys may name absent nodes (dangling edges).
	incoming map[string][]*Edge

	// state is the current lifecycle state.
	state GraphState

	// options contains configuration.
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze() was called.
	// Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates a new empty graph.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddNode and
//	AddEdge calls.
//
// Example:
//
//	g := NewGraph(WithMaxNodes(10_000))
func NewGraph(opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
		state:    GraphStateBuilding,
		options:  options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode.
//
// Description:
//
//	After calling Freeze(), AddNode and AddEdge return ErrGraphFrozen.
//	This operation is irreversible. Calling it twice is a no-op.
func (g *Graph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds a component node.
//
// Description:
//
//	Stores the node under its ID. The ID must equal the canonical form of
//	the node's Ref; the graph normalizes Ref in place before checking.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidNode - Node is nil, has an empty ID, or ID != Ref.ID()
//	ErrDuplicateNode - Node with same ID already exists
//	ErrMaxNodesExceeded - Graph is at node capacity
//
// Ownership:
//
//	The graph stores the pointer; the node MUST NOT be mutated afterwards.
func (g *Graph) AddNode(node *Node) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}

	node.Ref = node.Ref.Normalized()
	if node.ID != node.Ref.ID() {
		return fmt.Errorf("%w: id %q does not match ref %q", ErrInvalidNode, node.ID, node.Ref.ID())
	}

	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	if len(g.nodes) >= g.options.MaxNodes {
		return ErrMaxNodesExceeded
	}

	if node.Source == "" {
		node.Source = SourceLocal
	}
	g.nodes[node.ID] = node
	return nil
}

// AddEdge adds a dependency edge.
//
// Description:
//
//	The From node must already exist. The To node may be absent; the edge
//	is then dangling until a node with that id is added (or forever, in
//	which case the diff engine reports it). The edge ID is always
//	recomputed from From and To.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidEdge - Edge is nil or an endpoint is empty
//	ErrNodeNotFound - From node doesn't exist
//	ErrDuplicateEdge - An edge for the same (From, To) pair exists
//	ErrMaxEdgesExceeded - Graph is at edge capacity
func (g *Graph) AddEdge(edge *Edge) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if edge == nil || edge.From == "" || edge.To == "" {
		return ErrInvalidEdge
	}
	if _, exists := g.nodes[edge.From]; !exists {
		return fmt.Errorf("%w: from %s", ErrNodeNotFound, edge.From)
	}

	edge.ID = EdgeID(edge.From, edge.To)
	if _, exists := g.edges[edge.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, edge.ID)
	}
	if len(g.edges) >= g.options.MaxEdges {
		return ErrMaxEdgesExceeded
	}

	g.edges[edge.ID] = edge
	g.outgoing[edge.From] = append(g.outgoing[edge.From], edge)
	g.incoming[edge.To] = append(g.incoming[edge.To], edge)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode returns true if a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// HasEdge returns true if an edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.edges[EdgeID(from, to)]
	return ok
}

// NodeIDs returns all node ids sorted lexically.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []*Node {
	ids := g.NodeIDs()
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = g.nodes[id]
	}
	return nodes
}

// Edges returns all edges sorted by id.
func (g *Graph) Edges() []*Edge {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	edges := make([]*Edge, len(ids))
	for i, id := range ids {
		edges[i] = g.edges[id]
	}
	return edges
}

// Outgoing returns the edges whose From is id (what id depends on).
//
// The returned slice is owned by the graph and MUST NOT be modified.
func (g *Graph) Outgoing(id string) []*Edge {
	return g.outgoing[id]
}

// Incoming returns the edges whose To is id (what depends on id).
//
// The returned slice is owned by the graph and MUST NOT be modified.
func (g *Graph) Incoming(id string) []*Edge {
	return g.incoming[id]
}

// DanglingEdges returns edges whose target node is absent, sorted by id.
func (g *Graph) DanglingEdges() []*Edge {
	var out []*Edge
	for _, e := range g.Edges() {
		if _, ok := g.nodes[e.To]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the adjacency invariants.
//
// Description:
//
//	Every edge must appear exactly once in its source's outgoing list and
//	its target's incoming list, every indexed edge must be in the edge
//	map, and every edge's From must be a node.
//
// Outputs:
//
//	error - ErrIndexInconsistent describing the first violation, or nil.
func (g *Graph) Validate() error {
	for id, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return fmt.Errorf("%w: edge %s has unknown source", ErrIndexInconsistent, id)
		}
		if countEdge(g.outgoing[e.From], e) != 1 {
			return fmt.Errorf("%w: edge %s not mirrored once in outgoing", ErrIndexInconsistent, id)
		}
		if countEdge(g.incoming[e.To], e) != 1 {
			return fmt.Errorf("%w: edge %s not mirrored once in incoming", ErrIndexInconsistent, id)
		}
	}

	indexed := 0
	for _, list := range g.outgoing {
		for _, e := range list {
			if g.edges[e.ID] != e {
				return fmt.Errorf("%w: outgoing edge %s missing from edge map", ErrIndexInconsistent, e.ID)
			}
			indexed++
		}
	}
	if indexed != len(g.edges) {
		return fmt.Errorf("%w: outgoing index holds %d edges, edge map %d", ErrIndexInconsistent, indexed, len(g.edges))
	}

	indexed = 0
	for _, list := range g.incoming {
		for _, e := range list {
			if g.edges[e.ID] != e {
				return fmt.Errorf("%w: incoming edge %s missing from edge map", ErrIndexInconsistent, e.ID)
			}
			indexed++
		}
	}
	if indexed != len(g.edges) {
		return fmt.Errorf("%w: incoming index holds %d edges, edge map %d", ErrIndexInconsistent, indexed, len(g.edges))
	}
	return nil
}

func countEdge(list []*Edge, target *Edge) int {
	n := 0
	for _, e := range list {
		if e == target {
			n++
		}
	}
	return n
}
