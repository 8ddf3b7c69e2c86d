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

import "github.com/AleutianAI/flowgraph/services/flowgraph/graph"

// Default normalizer configuration values.
const (
	// DefaultDomain is used when a heuristic path reference carries no domain.
	DefaultDomain = "core"

	// DefaultVersion is used when a reference carries no version.
	DefaultVersion = "1.0.0"
)

// DirectoryFlow maps a directory name fragment to a flow.
//
// A path's top-level directory matches when, lower-cased, it contains Match.
type DirectoryFlow struct {
	Match string `yaml:"match" json:"match"`
	Flow  string `yaml:"flow" json:"flow"`
}

// DefaultTypeFlows returns the flow each component type lives in.
func DefaultTypeFlows() map[graph.ComponentType]string {
	return map[graph.ComponentType]string{
		graph.ComponentTypeTask:      "sys-tasks",
		graph.ComponentTypeSchema:    "sys-schemas",
		graph.ComponentTypeView:      "sys-views",
		graph.ComponentTypeFunction:  "sys-functions",
		graph.ComponentTypeExtension: "sys-extensions",
		graph.ComponentTypeWorkflow:  "sys-flows",
	}
}

// DefaultDirectoryFlows returns the directory to flow table, checked in order.
func DefaultDirectoryFlows() []DirectoryFlow {
	return []DirectoryFlow{
		{Match: "task", Flow: "sys-tasks"},
		{Match: "schema", Flow: "sys-schemas"},
		{Match: "view", Flow: "sys-views"},
		{Match: "function", Flow: "sys-functions"},
		{Match: "extension", Flow: "sys-extensions"},
		{Match: "flow", Flow: "sys-flows"},
	}
}

// Options configures a Normalizer.
type Options struct {
	// DefaultDomain is the domain assigned by the path heuristic.
	// Default: "core"
	DefaultDomain string

	// DefaultVersion is the version assigned when a reference has none.
	// Default: "1.0.0"
	DefaultVersion string

	// DirectoryFlows is the ordered directory to flow table used by the
	// path heuristic. The first match wins.
	DirectoryFlows []DirectoryFlow

	// TypeFlows is the flow used when a reference omits one and no
	// directory matches.
	TypeFlows map[graph.ComponentType]string

	// Strict turns unresolvable references into errors.
	Strict bool

	// Resolver, when set, is authoritative for bare file-path references.
	// The heuristic is not consulted.
	Resolver Resolver
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		DefaultDomain:  DefaultDomain,
		DefaultVersion: DefaultVersion,
		DirectoryFlows: DefaultDirectoryFlows(),
		TypeFlows:      DefaultTypeFlows(),
	}
}

// Option is a functional option for configuring a Normalizer.
type Option func(*Options)

// WithDefaultDomain sets the heuristic default domain.
func WithDefaultDomain(domain string) Option {
	return func(o *Options) {
		o.DefaultDomain = domain
	}
}

// WithDefaultVersion sets the version used when a reference has none.
func WithDefaultVersion(version string) Option {
	return func(o *Options) {
		o.DefaultVersion = version
	}
}

// WithDirectoryFlows replaces the directory to flow table.
func WithDirectoryFlows(table []DirectoryFlow) Option {
	return func(o *Options) {
		o.DirectoryFlows = table
	}
}

// WithTypeFlows overrides the flow of individual component types.
func WithTypeFlows(flows map[graph.ComponentType]string) Option {
	return func(o *Options) {
		for t, f := range flows {
			o.TypeFlows[t] = f
		}
	}
}

// WithStrict enables strict mode.
func WithStrict(strict bool) Option {
	return func(o *Options) {
		o.Strict = strict
	}
}

// WithResolver sets the resolver for bare file-path references.
func WithResolver(r Resolver) Option {
	return func(o *Options) {
		o.Resolver = r
	}
}
