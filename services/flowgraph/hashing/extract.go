// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hashing

import (
	"fmt"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// Extractor splits a definition into its API and config subsets. A nil API
// subset means the type has no external contract.
type Extractor func(def map[string]any) (api, config map[string]any)

// Contract keys per component type.
var (
	taskContract     = []string{"type", "inputs", "outputs", "required"}
	schemaContract   = []string{"type", "schema"}
	functionContract = []string{"scope", "inputs", "outputs", "required"}
)

var extractors = map[graph.ComponentType]Extractor{
	graph.ComponentTypeTask:     keysExtractor(taskContract),
	graph.ComponentTypeSchema:   keysExtractor(schemaContract),
	graph.ComponentTypeFunction: keysExtractor(functionContract),
	graph.ComponentTypeWorkflow: extractWorkflow,

	graph.ComponentTypeView:      configOnly,
	graph.ComponentTypeExtension: configOnly,
}

// ExtractorFor returns the extractor for t.
func ExtractorFor(t graph.ComponentType) (Extractor, bool) {
	e, ok := extractors[t]
	return e, ok
}

// ComputeHashes returns the API and config hashes of a definition.
//
// Views and extensions have no contract: their API hash is empty and the
// config hash covers the whole definition. Both are empty, with a nil
// error, when t has no extractor.
func ComputeHashes(t graph.ComponentType, def map[string]any) (apiHash, configHash string, err error) {
	extract, ok := extractors[t]
	if !ok {
		return "", "", nil
	}
	api, config := extract(def)

	if api != nil {
		if apiHash, err = Hash(api); err != nil {
			return "", "", fmt.Errorf("api hash: %w", err)
		}
	}
	if configHash, err = Hash(config); err != nil {
		return "", "", fmt.Errorf("config hash: %w", err)
	}
	return apiHash, configHash, nil
}

// keysExtractor puts the listed keys in the API subset and everything else
// in the config subset. Absent contract keys are omitted.
func keysExtractor(contract []string) Extractor {
	return func(def map[string]any) (map[string]any, map[string]any) {
		api := make(map[string]any, len(contract))
		for _, k := range contract {
			if v, ok := def[k]; ok {
				api[k] = v
			}
		}
		return api, without(def, contract)
	}
}

func configOnly(def map[string]any) (map[string]any, map[string]any) {
	return nil, without(def, nil)
}

// extractWorkflow projects the state machine shape into the API subset.
//
// The API covers the workflow type, the start transition and, per state and
// shared transition, the keys, targets and schemas. The config subset is
// the definition without type, so state behavior (tasks, views, sub flows)
// is config.
func extractWorkflow(def map[string]any) (map[string]any, map[string]any) {
	api := map[string]any{}
	if v, ok := def["type"]; ok {
		api["type"] = v
	}
	if v, ok := def["startTransition"]; ok {
		api["startTransition"] = projectTransition(v)
	}

	if states, ok := def["states"].([]any); ok {
		projected := make([]any, 0, len(states))
		for _, s := range states {
			state, ok := s.(map[string]any)
			if !ok {
				continue
			}
			projected = append(projected, map[string]any{
				"key":         state["key"],
				"transitions": projectTransitions(state["transitions"]),
			})
		}
		api["states"] = projected
	}
	if shared, ok := def["sharedTransitions"]; ok {
		api["sharedTransitions"] = projectTransitions(shared)
	}

	return api, without(def, []string{"type"})
}

func projectTransitions(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(list))
	for _, t := range list {
		out = append(out, projectTransition(t))
	}
	return out
}

func projectTransition(v any) any {
	t, ok := v.(map[string]any)
	if !ok {
		return v
	}
	return map[string]any{
		"key":    t["key"],
		"target": t["target"],
		"schema": t["schema"],
	}
}

func without(def map[string]any, drop []string) map[string]any {
	skip := make(map[string]bool, len(drop))
	for _, k := range drop {
		skip[k] = true
	}
	out := make(map[string]any, len(def))
	for k, v := range def {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}
