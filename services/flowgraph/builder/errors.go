// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package builder constructs component graphs from a workspace directory.
//
// A workspace holds one directory tree per component type (Tasks/,
// Schemas/, Workflows/, ...). The builder discovers the component files,
// reads them in parallel, and inserts the resulting nodes from a single
// coordinating loop in discovery order. Edges are added in two passes:
// the first adds edges whose target already exists, the second, run after
// every node is in place, adds the rest. Edges whose target never appears
// stay dangling and surface later as missing dependencies.
//
// # Failure Modes
//
// Unreadable or invalid files are recorded in BuildResult.FileErrors and
// skipped. Unresolved references are recorded as ReferenceIssues unless
// strict mode is on, in which case Build returns a *normalize.ReferenceError.
// Context cancellation returns the partial result with Incomplete set.
package builder

import "errors"

var (
	// ErrRootNotSet is returned when Build is called without a root.
	ErrRootNotSet = errors.New("workspace root not set")

	// ErrRootNotDirectory is returned when the root is missing or is a file.
	ErrRootNotDirectory = errors.New("workspace root is not a directory")

	// ErrInvalidComponent is the base error for component files that fail
	// envelope validation.
	ErrInvalidComponent = errors.New("invalid component file")
)
