// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/hashing"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
)

// envelopeValidate validates the top-level fields of component files.
var envelopeValidate *validator.Validate

func init() {
	envelopeValidate = validator.New()
	_ = envelopeValidate.RegisterValidation("refsegment", validateRefSegment)
}

// validateRefSegment rejects the separators of the canonical id.
func validateRefSegment(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), "/@")
}

// envelope holds the fields every component file must carry.
type envelope struct {
	Key     string `json:"key" validate:"required,refsegment"`
	Domain  string `json:"domain" validate:"required,refsegment"`
	Flow    string `json:"flow" validate:"omitempty,refsegment"`
	Version string `json:"version" validate:"required"`
}

// loadedFile is the value a reader goroutine returns for one file.
type loadedFile struct {
	file   componentFile
	node   *graph.Node
	refs   []normalize.Reference
	issues []normalize.ReferenceIssue
	err    error
}

// load reads, validates and prepares one component file. It never touches
// the graph. Only a strict-mode reference error is returned as fatal; all
// other failures are carried in loadedFile.err.
func (b *Builder) load(ctx context.Context, n *normalize.Normalizer, f componentFile) (loadedFile, error) {
	out := loadedFile{file: f}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		out.err = fmt.Errorf("read: %w", err)
		return out, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		out.err = fmt.Errorf("decode: %w", err)
		return out, nil
	}
	if raw == nil {
		out.err = fmt.Errorf("%w: not a JSON object", ErrInvalidComponent)
		return out, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		out.err = fmt.Errorf("%w: %v", ErrInvalidComponent, err)
		return out, nil
	}
	if err := envelopeValidate.Struct(env); err != nil {
		out.err = fmt.Errorf("%w: %v", ErrInvalidComponent, err)
		return out, nil
	}

	flow := env.Flow
	if flow == "" {
		flow = n.Options().TypeFlows[f.Type]
	}
	ref := graph.ComponentRef{
		Domain:  env.Domain,
		Flow:    flow,
		Key:     env.Key,
		Version: env.Version,
	}.Normalized()

	def := raw
	if attrs, ok := raw["attributes"].(map[string]any); ok {
		def = attrs
	}

	if f.Type == graph.ComponentTypeWorkflow {
		normalized, issues, err := n.NormalizeDefinition(ctx, def)
		if err != nil {
			return out, fmt.Errorf("%s: %w", f.RelPath, err)
		}
		if b.options.Strict && len(issues) > 0 {
			issue := issues[0]
			return out, fmt.Errorf("%s: %w", f.RelPath, &normalize.ReferenceError{
				Raw:      issue.Raw,
				Type:     issue.Type,
				Location: issue.Location,
				Err:      fmt.Errorf("%w: %s", normalize.ErrUnresolvedReference, issue.Reason),
			})
		}
		def = normalized
		out.issues = issues
		out.refs = n.ExtractReferences(ctx, def)
	}

	node := &graph.Node{
		ID:         ref.ID(),
		Ref:        ref,
		Type:       f.Type,
		Label:      label(raw, ref.Key),
		Definition: def,
		Source:     b.options.Source,
		Tags:       tags(raw),
		Metadata:   map[string]any{graph.MetadataPath: f.RelPath},
	}

	if b.options.Hashing {
		node.APIHash, node.ConfigHash, err = hashing.ComputeHashes(f.Type, def)
		if err != nil {
			out.err = fmt.Errorf("hash: %w", err)
			return out, nil
		}
	}

	out.node = node
	return out, nil
}

// label returns the file's "label" string, or fallback.
func label(raw map[string]any, fallback string) string {
	if s, ok := raw["label"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// tags returns the string elements of the file's "tags" array.
func tags(raw map[string]any) []string {
	list, ok := raw["tags"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, t := range list {
		if s, ok := t.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
