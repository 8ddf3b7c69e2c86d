// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact computes the set of components affected by a change.
//
// Edges in a component graph mean "depends on", so the components affected
// by a change to X are found by walking X's incoming edges: everything that
// depends on X, then everything that depends on those, and so on.
//
// Cycles are tolerated. A visited set guarantees termination on graphs that
// still carry circular-dependency violations.
package impact

import (
	"errors"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

var (
	// ErrNoStartNodes is returned when an analysis has nothing to start from.
	ErrNoStartNodes = errors.New("no start components")

	// ErrNoPath is returned when no dependency path connects two components.
	ErrNoPath = errors.New("no dependency path")
)

// RiskLevel is a coarse classification of how many components a change
// affects.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Risk thresholds on the number of affected components, origins excluded.
const (
	LowRiskMax    = 5
	MediumRiskMax = 15
	HighRiskMax   = 30
)

// DefaultThreshold is the risk level above which the CLI reports failure.
const DefaultThreshold = RiskHigh

// ClassifyRisk buckets an affected-component count.
func ClassifyRisk(affected int) RiskLevel {
	switch {
	case affected <= LowRiskMax:
		return RiskLow
	case affected <= MediumRiskMax:
		return RiskMedium
	case affected <= HighRiskMax:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ParseRiskLevel parses a risk level name, case-insensitively.
// Unknown names map to DefaultThreshold.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	case "critical":
		return RiskCritical
	default:
		return DefaultThreshold
	}
}

// Exceeds returns true if this risk level is strictly above threshold.
func (r RiskLevel) Exceeds(threshold RiskLevel) bool {
	levels := map[RiskLevel]int{
		RiskLow:      0,
		RiskMedium:   1,
		RiskHigh:     2,
		RiskCritical: 3,
	}
	return levels[r] > levels[threshold]
}

// Options configures an impact analysis.
type Options struct {
	// MaxDepth stops expansion of nodes at this depth. 0 means unlimited.
	MaxDepth int

	// IncludeTypes restricts which components appear in the result.
	// Traversal continues through excluded components. Empty means all.
	IncludeTypes []graph.ComponentType

	// IncludePaths records the shortest path from an origin to each
	// affected component.
	IncludePaths bool
}

// DefaultOptions returns unlimited depth, all types, with paths.
func DefaultOptions() Options {
	return Options{IncludePaths: true}
}

// Option configures an impact analysis.
type Option func(*Options)

// WithMaxDepth limits traversal depth. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(o *Options) {
		if d >= 0 {
			o.MaxDepth = d
		}
	}
}

// WithTypes restricts the reported component types.
func WithTypes(types ...graph.ComponentType) Option {
	return func(o *Options) {
		o.IncludeTypes = types
	}
}

// WithPaths toggles dependency path recording.
func WithPaths(include bool) Option {
	return func(o *Options) {
		o.IncludePaths = include
	}
}

// Affected is one component in an impact cone.
type Affected struct {
	// ID is the component id.
	ID string `json:"id"`

	// Type is empty when the component is not in the graph.
	Type graph.ComponentType `json:"type,omitempty"`

	// Depth is the edge distance from the nearest origin. Origins are 0.
	Depth int `json:"depth"`

	// Origin is the start component this one was reached from.
	Origin string `json:"origin"`

	// Missing is true for ids referenced by edges but absent as nodes.
	Missing bool `json:"missing,omitempty"`
}

// Stats summarizes an impact cone.
type Stats struct {
	// Total is the number of reported components, origins included.
	Total int `json:"total"`

	// Dependents is the number of components reached, origins excluded.
	// The type filter does not apply.
	Dependents int `json:"dependents"`

	ByDepth         map[int]int                 `json:"byDepth"`
	ByType          map[graph.ComponentType]int `json:"byType"`
	MaxDepthReached int                         `json:"maxDepthReached"`

	// Risk classifies Dependents.
	Risk RiskLevel `json:"risk"`
}

// Result is the outcome of an impact analysis.
type Result struct {
	// AffectedComponents in BFS order.
	AffectedComponents []Affected `json:"affectedComponents"`

	// DependencyPaths maps each affected id to its path from the origin,
	// origin first. Nil when paths were not requested.
	DependencyPaths map[string][]string `json:"dependencyPaths,omitempty"`

	Stats Stats `json:"stats"`

	// Truncated is set when the context was cancelled mid-traversal.
	Truncated bool `json:"truncated,omitempty"`
}

// IDs returns the affected ids in BFS order.
func (r *Result) IDs() []string {
	out := make([]string, len(r.AffectedComponents))
	for i, a := range r.AffectedComponents {
		out[i] = a.ID
	}
	return out
}
