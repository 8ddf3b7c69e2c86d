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

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// Reference modifier keys carried alongside a reference.
const (
	ModifierVersionRange = "versionRange"
	ModifierOptional     = "optional"
)

// ReferenceIssue records a reference left unresolved in non-strict mode.
type ReferenceIssue struct {
	// Location is the path of the reference inside the definition,
	// e.g. "states[0].onEntries[1].task".
	Location string `json:"location"`

	// Type is the declared component type.
	Type graph.ComponentType `json:"type"`

	// Raw is the original reference value.
	Raw any `json:"raw"`

	// Reason describes why the reference failed.
	Reason string `json:"reason"`
}

// Reference is a dependency extracted from a definition.
type Reference struct {
	// Ref is the normalized target.
	Ref graph.ComponentRef `json:"ref"`

	// ID is Ref.ID().
	ID string `json:"id"`

	// Type is the declared component type.
	Type graph.ComponentType `json:"type"`

	// VersionRange is the optional semver constraint.
	VersionRange string `json:"versionRange,omitempty"`

	// Required is false for references marked optional.
	Required bool `json:"required"`

	// Location is where the reference was first found.
	Location string `json:"location"`
}

// NormalizeDefinition rewrites every embedded reference of a workflow
// definition into the structured form.
//
// Description:
//
//	The definition is deep-copied; the input is never modified. Each
//	reference location is visited in a fixed order:
//	  states[].onEntries[].task, states[].onExits[].task, states[].view,
//	  states[].subFlow.process, states[].transitions[] (schema, view,
//	  onExecutionTasks[].task), sharedTransitions[], startTransition,
//	  functions[], extensions[].
//	Resolved references become {key, domain, flow, version} maps, keeping
//	the versionRange and optional modifiers when present.
//
// Outputs:
//
//	map[string]any - The normalized copy.
//	[]ReferenceIssue - References left raw in non-strict mode.
//	error - *ReferenceError for the first unresolved reference in strict
//	        mode, or the context error.
func (n *Normalizer) NormalizeDefinition(ctx context.Context, def map[string]any) (map[string]any, []ReferenceIssue, error) {
	out, _ := deepCopy(def).(map[string]any)
	if out == nil {
		return nil, nil, nil
	}

	var (
		issues   []ReferenceIssue
		firstErr error
	)
	walkWorkflow(out, func(loc string, t graph.ComponentType, raw any) (any, bool) {
		if firstErr != nil {
			return nil, false
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			return nil, false
		}

		ref, reason := n.resolve(ctx, raw, t)
		if reason != nil {
			if n.options.Strict {
				firstErr = newReferenceError(raw, t, loc, reason)
				return nil, false
			}
			issues = append(issues, ReferenceIssue{
				Location: loc,
				Type:     t,
				Raw:      raw,
				Reason:   reason.Error(),
			})
			return nil, false
		}
		return structured(ref, raw), true
	})

	if firstErr != nil {
		return nil, issues, firstErr
	}
	return out, issues, nil
}

// ExtractReferences returns the dependencies of a workflow definition.
//
// Description:
//
//	Walks the same locations as NormalizeDefinition. References that do
//	not resolve are skipped here; NormalizeDefinition is where they are
//	reported. References to the same id collapse to the first occurrence.
func (n *Normalizer) ExtractReferences(ctx context.Context, def map[string]any) []Reference {
	var refs []Reference
	seen := make(map[string]bool)

	walkWorkflow(def, func(loc string, t graph.ComponentType, raw any) (any, bool) {
		ref, reason := n.resolve(ctx, raw, t)
		if reason != nil {
			return nil, false
		}
		id := ref.ID()
		if seen[id] {
			return nil, false
		}
		seen[id] = true

		rng, optional := modifiers(raw)
		refs = append(refs, Reference{
			Ref:          *ref,
			ID:           id,
			Type:         t,
			VersionRange: rng,
			Required:     !optional,
			Location:     loc,
		})
		return nil, false
	})
	return refs
}

// structured builds the canonical reference map, keeping modifiers of raw.
func structured(ref *graph.ComponentRef, raw any) map[string]any {
	out := map[string]any{
		"key":     ref.Key,
		"domain":  ref.Domain,
		"flow":    ref.Flow,
		"version": ref.Version,
	}
	rng, optional := modifiers(raw)
	if rng != "" {
		out[ModifierVersionRange] = rng
	}
	if optional {
		out[ModifierOptional] = true
	}
	return out
}

// modifiers reads versionRange and optional from a map reference.
func modifiers(raw any) (string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	rng, _ := m[ModifierVersionRange].(string)
	optional, _ := m[ModifierOptional].(bool)
	return strings.TrimSpace(rng), optional
}

// visitFunc is called for every reference slot. Returning true replaces
// the slot's value with the returned one.
type visitFunc func(loc string, t graph.ComponentType, raw any) (any, bool)

func walkWorkflow(def map[string]any, visit visitFunc) {
	if states, ok := def["states"].([]any); ok {
		for i, s := range states {
			state, ok := s.(map[string]any)
			if !ok {
				continue
			}
			loc := fmt.Sprintf("states[%d]", i)
			walkTaskList(state, "onEntries", loc, visit)
			walkTaskList(state, "onExits", loc, visit)
			visitField(state, "view", loc+".view", graph.ComponentTypeView, visit)
			if sub, ok := state["subFlow"].(map[string]any); ok {
				visitField(sub, "process", loc+".subFlow.process", graph.ComponentTypeWorkflow, visit)
			}
			walkTransitions(state, "transitions", loc+".", visit)
		}
	}

	walkTransitions(def, "sharedTransitions", "", visit)
	if start, ok := def["startTransition"].(map[string]any); ok {
		walkTransition(start, "startTransition", visit)
	}

	walkRefList(def, "functions", graph.ComponentTypeFunction, visit)
	walkRefList(def, "extensions", graph.ComponentTypeExtension, visit)
}

func walkTransitions(m map[string]any, field, prefix string, visit visitFunc) {
	list, ok := m[field].([]any)
	if !ok {
		return
	}
	for i, item := range list {
		if t, ok := item.(map[string]any); ok {
			walkTransition(t, fmt.Sprintf("%s%s[%d]", prefix, field, i), visit)
		}
	}
}

func walkTransition(t map[string]any, loc string, visit visitFunc) {
	visitField(t, "schema", loc+".schema", graph.ComponentTypeSchema, visit)
	visitField(t, "view", loc+".view", graph.ComponentTypeView, visit)
	walkTaskList(t, "onExecutionTasks", loc, visit)
}

// walkTaskList visits m[field][i].task.
func walkTaskList(m map[string]any, field, loc string, visit visitFunc) {
	list, ok := m[field].([]any)
	if !ok {
		return
	}
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		visitField(entry, "task", fmt.Sprintf("%s.%s[%d].task", loc, field, i), graph.ComponentTypeTask, visit)
	}
}

// walkRefList visits every element of m[field], each being a reference.
func walkRefList(m map[string]any, field string, t graph.ComponentType, visit visitFunc) {
	list, ok := m[field].([]any)
	if !ok {
		return
	}
	for i, item := range list {
		if item == nil {
			continue
		}
		if rep, ok := visit(fmt.Sprintf("%s[%d]", field, i), t, item); ok {
			list[i] = rep
		}
	}
}

func visitField(m map[string]any, field, loc string, t graph.ComponentType, visit visitFunc) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return
	}
	if rep, ok := visit(loc, t, raw); ok {
		m[field] = rep
	}
}

// deepCopy copies JSON-shaped values (maps, slices, scalars).
func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
