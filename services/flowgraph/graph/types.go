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
	"strings"
)

// ComponentType is the kind of a component.
type ComponentType string

const (
	// ComponentTypeTask is an executable task definition.
	ComponentTypeTask ComponentType = "task"

	// ComponentTypeSchema is a data contract (JSON schema).
	ComponentTypeSchema ComponentType = "schema"

	// ComponentTypeView is a UI view definition.
	ComponentTypeView ComponentType = "view"

	// ComponentTypeFunction is a callable function definition.
	ComponentTypeFunction ComponentType = "function"

	// ComponentTypeExtension is a data extension definition.
	ComponentTypeExtension ComponentType = "extension"

	// ComponentTypeWorkflow is a state machine that references the others.
	ComponentTypeWorkflow ComponentType = "workflow"
)

// AllComponentTypes returns every component type in a fixed order.
//
// Leaf types come first and workflow last, which is also the order the
// builder scans them in.
func AllComponentTypes() []ComponentType {
	return []ComponentType{
		ComponentTypeTask,
		ComponentTypeSchema,
		ComponentTypeView,
		ComponentTypeFunction,
		ComponentTypeExtension,
		ComponentTypeWorkflow,
	}
}

// Valid returns true if t is one of the known component types.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentTypeTask, ComponentTypeSchema, ComponentTypeView,
		ComponentTypeFunction, ComponentTypeExtension, ComponentTypeWorkflow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the ComponentType.
func (t ComponentType) String() string {
	return string(t)
}

// ParseComponentType parses a type name, accepting plural forms
// ("tasks", "Workflows").
func ParseComponentType(s string) (ComponentType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "s")
	t := ComponentType(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown component type %q", s)
	}
	return t, nil
}

// ComponentRef identifies one version of a component.
//
// Domain, Flow and Key are case-insensitive and compared in lower case;
// Version is kept verbatim.
type ComponentRef struct {
	Domain  string `json:"domain"`
	Flow    string `json:"flow"`
	Key     string `json:"key"`
	Version string `json:"version"`
}

// Normalized returns a copy with Domain, Flow and Key lower-cased and
// surrounding whitespace removed. Version is only trimmed.
func (r ComponentRef) Normalized() ComponentRef {
	return ComponentRef{
		Domain:  strings.ToLower(strings.TrimSpace(r.Domain)),
		Flow:    strings.ToLower(strings.TrimSpace(r.Flow)),
		Key:     strings.ToLower(strings.TrimSpace(r.Key)),
		Version: strings.TrimSpace(r.Version),
	}
}

// ID returns the canonical component id "domain/flow/key@version".
func (r ComponentRef) ID() string {
	n := r.Normalized()
	return n.Domain + "/" + n.Flow + "/" + n.Key + "@" + n.Version
}

// LogicalKey returns the version-erased identity "domain/flow/key".
func (r ComponentRef) LogicalKey() string {
	n := r.Normalized()
	return n.Domain + "/" + n.Flow + "/" + n.Key
}

// IsZero returns true if no field is set.
func (r ComponentRef) IsZero() bool {
	return r == ComponentRef{}
}

// String implements fmt.Stringer.
func (r ComponentRef) String() string {
	return r.ID()
}

// ParseID parses a canonical component id back into a ComponentRef.
//
// The inverse of ComponentRef.ID for well-formed ids. The version is the
// text after the last '@' so that versions never contain '/'.
func ParseID(id string) (ComponentRef, error) {
	at := strings.LastIndex(id, "@")
	if at <= 0 || at == len(id)-1 {
		return ComponentRef{}, fmt.Errorf("%w: %q", ErrInvalidComponentID, id)
	}
	parts := strings.Split(id[:at], "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ComponentRef{}, fmt.Errorf("%w: %q", ErrInvalidComponentID, id)
	}
	return ComponentRef{
		Domain:  parts[0],
		Flow:    parts[1],
		Key:     parts[2],
		Version: id[at+1:],
	}.Normalized(), nil
}

// Source tells where a node was observed.
type Source string

const (
	// SourceLocal marks nodes built from the design-time workspace.
	SourceLocal Source = "local"

	// SourceRuntime marks nodes fetched from a deployed environment.
	SourceRuntime Source = "runtime"
)

// Node is one component in the graph.
//
// Definition is the unwrapped component payload. The graph does NOT copy
// it; callers MUST NOT mutate a Definition after AddNode.
type Node struct {
	// ID is the canonical component id. Always equal to Ref.ID().
	ID string `json:"id"`

	// Ref is the normalized component reference.
	Ref ComponentRef `json:"ref"`

	// Type is the component kind.
	Type ComponentType `json:"type"`

	// Label is a human-readable name.
	Label string `json:"label"`

	// Definition is the component payload with any envelope removed.
	Definition map[string]any `json:"definition,omitempty"`

	// APIHash covers the external-contract subset of Definition.
	// Empty when the type has no contract extractor or hashing is disabled.
	APIHash string `json:"apiHash,omitempty"`

	// ConfigHash covers the behavioral remainder of Definition.
	ConfigHash string `json:"configHash,omitempty"`

	// Source is where the node was observed.
	Source Source `json:"source"`

	// Tags are free-form labels. Order is significant for diffing.
	Tags []string `json:"tags,omitempty"`

	// Metadata holds builder-provided facts such as the source file path.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Path returns the workspace-relative file path recorded by the builder,
// or "" if unknown.
func (n *Node) Path() string {
	if n == nil || n.Metadata == nil {
		return ""
	}
	p, _ := n.Metadata[MetadataPath].(string)
	return p
}

// MetadataPath is the Metadata key holding the component's file path.
const MetadataPath = "path"

// Edge is a dependency: From depends on To.
type Edge struct {
	// ID is EdgeID(From, To).
	ID string `json:"id"`

	// From is the dependent component id.
	From string `json:"from"`

	// To is the dependency component id. May name a node that is absent.
	To string `json:"to"`

	// Type is the component type of the dependency.
	Type ComponentType `json:"type"`

	// Required is false for references marked optional.
	Required bool `json:"required"`

	// VersionRange is an optional semver constraint on To's version.
	VersionRange string `json:"versionRange,omitempty"`
}

// EdgeID returns the canonical edge id for an ordered pair.
func EdgeID(from, to string) string {
	return from + "->" + to
}

// NewEdge creates a required edge with its canonical id.
func NewEdge(from, to string, t ComponentType) *Edge {
	return &Edge{
		ID:       EdgeID(from, to),
		From:     from,
		To:       to,
		Type:     t,
		Required: true,
	}
}
