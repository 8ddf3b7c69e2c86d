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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// Resolver looks up the component a file-path reference points to.
//
// Resolve returns found=false, err=nil when no component exists at ref.
// A non-nil error means the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, ref string, t graph.ComponentType) (*graph.ComponentRef, bool, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, ref string, t graph.ComponentType) (*graph.ComponentRef, bool, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, ref string, t graph.ComponentType) (*graph.ComponentRef, bool, error) {
	return f(ctx, ref, t)
}

// FileResolver resolves references by reading the target file under Root.
//
// The file must be a JSON object. Its top-level key, domain, flow and
// version fields are returned as-is; missing flow and version are filled in
// by the Normalizer.
type FileResolver struct {
	Root string
}

// NewFileResolver creates a FileResolver rooted at root.
func NewFileResolver(root string) *FileResolver {
	return &FileResolver{Root: root}
}

type refFields struct {
	Key     string `json:"key"`
	Domain  string `json:"domain"`
	Flow    string `json:"flow"`
	Version string `json:"version"`
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(ctx context.Context, ref string, _ graph.ComponentType) (*graph.ComponentRef, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	rel := filepath.FromSlash(strings.TrimPrefix(ref, "/"))
	if strings.HasPrefix(filepath.Clean(rel), "..") {
		return nil, false, fmt.Errorf("reference %q escapes resolver root", ref)
	}

	data, err := os.ReadFile(filepath.Join(r.Root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", ref, err)
	}

	var fields refFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", ref, err)
	}
	if fields.Key == "" || fields.Domain == "" {
		return nil, false, nil
	}

	return &graph.ComponentRef{
		Domain:  fields.Domain,
		Flow:    fields.Flow,
		Key:     fields.Key,
		Version: fields.Version,
	}, true, nil
}
