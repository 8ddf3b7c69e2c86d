// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowgraph/pkg/ux"
	"github.com/AleutianAI/flowgraph/services/flowgraph"
)

func newBuildCmd(a *app) *cobra.Command {
	var includeGraph bool

	cmd := &cobra.Command{
		Use:   "build [root]",
		Short: "Build the dependency graph of a workspace",
		Long: `Build reads every component file under the workspace root and prints
build statistics, unreadable files, duplicates and unresolved references.

With --json --graph the full graph document is included.

Examples:
  flowgraph build
  flowgraph build ./workspace --json --graph > graph.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootArg(args)
			spin := ux.NewSpinner(a.stderr, "building "+root)
			svc := a.service(nil, spin)

			spin.Start()
			result, err := svc.Build(cmd.Context(), root)
			spin.Stop()
			if err != nil {
				return err
			}

			resp := flowgraph.BuildResponse{
				Root:   root,
				Nodes:  result.Graph.NodeCount(),
				Edges:  result.Graph.EdgeCount(),
				Result: result,
			}
			if includeGraph {
				resp.Graph = result.Graph
			}
			return a.emit(resp, func(w io.Writer) {
				ux.RenderBuild(w, root, result)
			})
		},
	}
	cmd.Flags().BoolVar(&includeGraph, "graph", false, "Include the graph document in JSON output")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [root]",
		Short: "Check a workspace for missing and circular dependencies",
		Long: `Check builds the workspace and reports missing dependencies, circular
dependencies and version range violations.

Exits 1 when any error-severity finding is reported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootArg(args)
			spin := ux.NewSpinner(a.stderr, "checking "+root)
			svc := a.service(nil, spin)

			spin.Start()
			report, err := svc.Check(cmd.Context(), root)
			spin.Stop()
			if err != nil {
				return err
			}

			if err := a.emit(report, func(w io.Writer) {
				ux.RenderDelta(w, "Check "+root, report.Delta)
			}); err != nil {
				return err
			}
			if report.Delta.HasErrors() {
				return findings("%d errors", len(report.Delta.Errors))
			}
			return nil
		},
	}
}
