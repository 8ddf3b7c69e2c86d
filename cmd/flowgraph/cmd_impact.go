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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowgraph/pkg/ux"
	"github.com/AleutianAI/flowgraph/services/flowgraph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
)

func newImpactCmd(a *app) *cobra.Command {
	var (
		root      string
		ids       []string
		patchFile string
		threshold string
		maxDepth  int
		types     []string
		noPaths   bool
	)

	cmd := &cobra.Command{
		Use:   "impact [files...]",
		Short: "Analyze the impact of a change",
		Long: `Impact lists every component that directly or transitively depends on
the changed components, nearest first, and classifies the risk by the
number of dependents.

Changed components are named by id (--id), by a unified diff (--patch,
"-" for stdin) or by workspace-relative file paths. All three combine.

Examples:
  flowgraph impact --id core/sys-tasks/invalidate-cache@1.0.0
  git diff main | flowgraph impact --patch -
  flowgraph impact Tasks/invalidate-cache.json --threshold medium

CI/CD Integration:
  git diff origin/main | flowgraph impact --patch - --threshold medium --json
  (exits 1 if risk exceeds threshold)`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := flowgraph.ImpactTarget{IDs: ids, Paths: args, Threshold: threshold}
			if patchFile != "" {
				patch, err := readPatch(cmd, patchFile)
				if err != nil {
					return err
				}
				target.Patch = patch
			}
			if len(target.IDs) == 0 && len(target.Paths) == 0 && len(target.Patch) == 0 {
				return errors.New("name changed components with --id, --patch or file paths")
			}

			var opts []impact.Option
			if cmd.Flags().Changed("max-depth") {
				opts = append(opts, impact.WithMaxDepth(maxDepth))
			}
			if len(types) > 0 {
				parsed := make([]graph.ComponentType, 0, len(types))
				for _, name := range types {
					t, err := graph.ParseComponentType(name)
					if err != nil {
						return err
					}
					parsed = append(parsed, t)
				}
				opts = append(opts, impact.WithTypes(parsed...))
			}
			if noPaths {
				opts = append(opts, impact.WithPaths(false))
			}

			spin := ux.NewSpinner(a.stderr, "analyzing "+root)
			svc := a.service(nil, spin)

			spin.Start()
			report, err := svc.Impact(cmd.Context(), root, target, opts...)
			spin.Stop()
			if err != nil {
				return err
			}

			if err := a.emit(report, func(w io.Writer) {
				ux.RenderImpact(w, report.Result, report.Changes, report.Threshold, report.Exceeded)
			}); err != nil {
				return err
			}
			if report.Exceeded {
				return findings("risk %s exceeds threshold %s", report.Result.Stats.Risk, report.Threshold)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Workspace root")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "Changed component id (repeatable)")
	cmd.Flags().StringVar(&patchFile, "patch", "", `Unified diff file, "-" for stdin`)
	cmd.Flags().StringVar(&threshold, "threshold", "",
		"Risk threshold for exit code: low, medium, high, critical (default from config)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum traversal depth (0 = unlimited)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "Report only these component types")
	cmd.Flags().BoolVar(&noPaths, "no-paths", false, "Omit dependency paths from JSON output")
	return cmd
}

func readPatch(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	return data, nil
}

func newPathCmd(a *app) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Show how a change to one component reaches another",
		Long: `Path prints the shortest chain of dependents from one component to
another: each component depends on the one before it.

Exits 1 when no chain connects them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spin := ux.NewSpinner(a.stderr, "building "+root)
			svc := a.service(nil, spin)

			spin.Start()
			path, err := svc.Path(cmd.Context(), root, args[0], args[1])
			spin.Stop()
			if errors.Is(err, impact.ErrNoPath) {
				ux.Warning(a.stderr, err.Error())
				return findings("no path from %s to %s", args[0], args[1])
			}
			if err != nil {
				return err
			}
			return a.emit(flowgraph.PathResponse{Path: path}, func(w io.Writer) {
				ux.RenderPath(w, path)
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "Workspace root")
	return cmd
}
