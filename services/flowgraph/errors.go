// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flowgraph

import "errors"

// Sentinel errors for the flowgraph service.
var (
	// ErrRelativePath indicates a workspace root that is not absolute.
	ErrRelativePath = errors.New("workspace root must be an absolute path")

	// ErrPathTraversal indicates a root containing ".." segments.
	ErrPathTraversal = errors.New("path contains traversal sequences")

	// ErrNotDirectory indicates a root that does not exist or is a file.
	ErrNotDirectory = errors.New("workspace root is not a directory")

	// ErrBuildIncomplete indicates a build cancelled before it finished.
	ErrBuildIncomplete = errors.New("build incomplete")

	// ErrNoSnapshotStore indicates a snapshot operation on a service
	// created without a store.
	ErrNoSnapshotStore = errors.New("snapshot store not configured")

	// ErrNoStartComponents indicates an impact request that names no
	// component and whose patch or paths match none.
	ErrNoStartComponents = errors.New("no components to analyze")
)
