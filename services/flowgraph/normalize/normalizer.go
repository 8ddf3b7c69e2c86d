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
	"path"
	"regexp"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

// compactRef matches "domain/flow/key@version".
var compactRef = regexp.MustCompile(`^([^/]+)/([^/]+)/([^@]+)@(.+)$`)

// Normalizer converts raw references into canonical component references.
type Normalizer struct {
	options Options
}

// New creates a Normalizer.
//
// Example:
//
//	n := normalize.New(
//	    normalize.WithStrict(true),
//	    normalize.WithResolver(normalize.NewFileResolver(root)),
//	)
func New(opts ...Option) *Normalizer {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.DefaultDomain == "" {
		options.DefaultDomain = DefaultDomain
	}
	if options.DefaultVersion == "" {
		options.DefaultVersion = DefaultVersion
	}
	if options.TypeFlows == nil {
		options.TypeFlows = DefaultTypeFlows()
	}
	return &Normalizer{options: options}
}

// Options returns a copy of the normalizer's configuration.
func (n *Normalizer) Options() Options {
	return n.options
}

// Strict reports whether the normalizer runs in strict mode.
func (n *Normalizer) Strict() bool {
	return n.options.Strict
}

// Normalize converts raw into a canonical component reference.
//
// Description:
//
//	Input forms are tried in priority order:
//	  1. structured map with key and domain, or a graph.ComponentRef
//	  2. wrapped {"ref": ...}, unwrapped and reprocessed
//	  3. compact "domain/flow/key@version" string
//	  4. bare file path, via the Resolver or the directory heuristic
//
// Inputs:
//
//	ctx - Passed to the Resolver.
//	raw - The reference value as found in a definition.
//	t - Declared component type of the reference.
//
// Outputs:
//
//	*graph.ComponentRef - The normalized reference. Nil on soft failure.
//	error - *ReferenceError in strict mode, nil otherwise.
func (n *Normalizer) Normalize(ctx context.Context, raw any, t graph.ComponentType) (*graph.ComponentRef, error) {
	ref, reason := n.resolve(ctx, raw, t)
	if reason == nil {
		return ref, nil
	}
	if n.options.Strict {
		return nil, newReferenceError(raw, t, "", reason)
	}
	return nil, nil
}

// resolve returns the normalized reference or the reason it failed.
func (n *Normalizer) resolve(ctx context.Context, raw any, t graph.ComponentType) (*graph.ComponentRef, error) {
	switch v := raw.(type) {
	case graph.ComponentRef:
		return n.fromFields(v.Domain, v.Flow, v.Key, v.Version, t)
	case *graph.ComponentRef:
		if v == nil {
			return nil, ErrInvalidReference
		}
		return n.fromFields(v.Domain, v.Flow, v.Key, v.Version, t)
	case map[string]any:
		key, hasKey := stringField(v, "key")
		domain, hasDomain := stringField(v, "domain")
		if hasKey && hasDomain {
			flow, _ := stringField(v, "flow")
			version, _ := stringField(v, "version")
			return n.fromFields(domain, flow, key, version, t)
		}
		if inner, ok := v["ref"]; ok {
			if _, nested := inner.(map[string]any); nested {
				return nil, fmt.Errorf("%w: nested ref wrapper", ErrInvalidReference)
			}
			return n.resolve(ctx, inner, t)
		}
		return nil, fmt.Errorf("%w: map without key/domain or ref", ErrInvalidReference)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, fmt.Errorf("%w: empty string", ErrInvalidReference)
		}
		if m := compactRef.FindStringSubmatch(s); m != nil {
			return n.fromFields(m[1], m[2], m[3], m[4], t)
		}
		return n.resolvePath(ctx, s, t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidReference, raw)
	}
}

// resolvePath handles bare file-path references.
func (n *Normalizer) resolvePath(ctx context.Context, p string, t graph.ComponentType) (*graph.ComponentRef, error) {
	if n.options.Resolver != nil {
		ref, found, err := n.options.Resolver.Resolve(ctx, p, t)
		if err != nil {
			return nil, err
		}
		if !found || ref == nil {
			return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, p)
		}
		return n.fromFields(ref.Domain, ref.Flow, ref.Key, ref.Version, t)
	}

	clean := strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
	clean = strings.TrimPrefix(path.Clean(clean), "./")
	segments := strings.Split(clean, "/")

	base := segments[len(segments)-1]
	key := strings.TrimSuffix(base, path.Ext(base))
	if key == "" || key == "." || key == ".." {
		return nil, fmt.Errorf("%w: no key in path %q", ErrInvalidReference, p)
	}

	flow := ""
	if len(segments) > 1 {
		flow = n.directoryFlow(segments[0])
	}
	return n.fromFields(n.options.DefaultDomain, flow, key, "", t)
}

// directoryFlow returns the flow for a top-level directory name, or "".
func (n *Normalizer) directoryFlow(dir string) string {
	dir = strings.ToLower(dir)
	for _, df := range n.options.DirectoryFlows {
		if df.Match != "" && strings.Contains(dir, strings.ToLower(df.Match)) {
			return df.Flow
		}
	}
	return ""
}

// fromFields fills in defaults and normalizes case.
func (n *Normalizer) fromFields(domain, flow, key, version string, t graph.ComponentType) (*graph.ComponentRef, error) {
	if strings.TrimSpace(flow) == "" {
		flow = n.options.TypeFlows[t]
	}
	if strings.TrimSpace(version) == "" {
		version = n.options.DefaultVersion
	}
	ref := graph.ComponentRef{Domain: domain, Flow: flow, Key: key, Version: version}.Normalized()
	if ref.Domain == "" || ref.Flow == "" || ref.Key == "" {
		return nil, fmt.Errorf("%w: incomplete reference %s", ErrInvalidReference, ref.ID())
	}
	if strings.ContainsAny(ref.Domain+ref.Flow+ref.Key, "/@") {
		return nil, fmt.Errorf("%w: separator in reference field %s", ErrInvalidReference, ref.ID())
	}
	return &ref, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
