// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize converts component references into canonical form.
//
// Component definitions reference each other in three encodings:
//
//   - structured: {"key": "foo", "domain": "core", "flow": "sys-tasks", "version": "1.0.0"}
//   - wrapped file reference: {"ref": "Tasks/foo.json"}
//   - compact string: "core/sys-tasks/foo@1.0.0"
//
// A Normalizer turns any of them into a graph.ComponentRef. Bare file paths
// are resolved through a Resolver when one is configured, otherwise through
// a directory-name heuristic.
//
// # Failure Modes
//
// In non-strict mode an unresolvable reference is a soft failure: Normalize
// returns (nil, nil) and NormalizeDefinition leaves the raw value in place
// and reports a ReferenceIssue. In strict mode both return a *ReferenceError
// wrapping ErrUnresolvedReference.
//
// # Thread Safety
//
// A Normalizer is immutable after construction and safe for concurrent use
// provided its Resolver is.
package normalize

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

var (
	// ErrUnresolvedReference is returned in strict mode when a reference
	// cannot be converted to a component reference.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrInvalidReference indicates the raw value has no recognizable shape.
	ErrInvalidReference = errors.New("invalid reference shape")

	// ErrReferenceNotFound indicates the resolver found no component.
	ErrReferenceNotFound = errors.New("referenced component not found")
)

// ReferenceError describes a reference that could not be normalized.
type ReferenceError struct {
	// Raw is the original reference value.
	Raw any

	// Type is the declared component type of the reference.
	Type graph.ComponentType

	// Location is where the reference sits inside a definition, if known.
	Location string

	// Err is the underlying reason. Always wraps ErrUnresolvedReference.
	Err error
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s reference %v at %s: %v", e.Type, e.Raw, e.Location, e.Err)
	}
	return fmt.Sprintf("%s reference %v: %v", e.Type, e.Raw, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ReferenceError) Unwrap() error {
	return e.Err
}

func newReferenceError(raw any, t graph.ComponentType, loc string, reason error) *ReferenceError {
	return &ReferenceError{
		Raw:      raw,
		Type:     t,
		Location: loc,
		Err:      fmt.Errorf("%w: %w", ErrUnresolvedReference, reason),
	}
}
