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
	"encoding/json"
	"fmt"
)

// Document is the serialized form of a Graph.
type Document struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// ToDocument returns the graph as a Document with nodes and edges sorted by id.
func (g *Graph) ToDocument() Document {
	return Document{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

// FromDocument builds a frozen graph from a Document.
//
// Description:
//
//	Nodes are added first, then edges, so edge order in the document does
//	not matter. Dangling edges are preserved.
//
// Outputs:
//
//	*Graph - The frozen graph.
//	error - Non-nil if a node or edge violates the graph invariants.
func FromDocument(doc Document, opts ...GraphOption) (*Graph, error) {
	g := NewGraph(opts...)
	for _, n := range doc.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("load node: %w", err)
		}
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("load edge: %w", err)
		}
	}
	g.Freeze()
	return g, nil
}

// MarshalJSON implements json.Marshaler.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToDocument())
}

// UnmarshalJSON implements json.Unmarshaler. The result is frozen.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	loaded, err := FromDocument(doc)
	if err != nil {
		return err
	}
	*g = *loaded
	return nil
}

// Filter returns a new frozen graph holding the nodes for which keep
// returns true and every edge whose source node was kept.
//
// Edges into dropped nodes become dangling in the result; node pointers
// are shared with g.
func (g *Graph) Filter(keep func(*Node) bool) *Graph {
	out := NewGraph(WithMaxNodes(g.options.MaxNodes), WithMaxEdges(g.options.MaxEdges))
	for _, n := range g.Nodes() {
		if keep(n) {
			out.nodes[n.ID] = n
		}
	}
	for _, e := range g.Edges() {
		if _, ok := out.nodes[e.From]; !ok {
			continue
		}
		out.edges[e.ID] = e
		out.outgoing[e.From] = append(out.outgoing[e.From], e)
		out.incoming[e.To] = append(out.incoming[e.To], e)
	}
	out.Freeze()
	return out
}
