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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowgraph/pkg/ux"
	"github.com/AleutianAI/flowgraph/services/flowgraph/diff"
	"github.com/AleutianAI/flowgraph/services/flowgraph/snapshot"
)

func newDiffCmd(a *app) *cobra.Command {
	var (
		domain      string
		minSeverity string
	)

	cmd := &cobra.Command{
		Use:   "diff <environment> [root]",
		Short: "Compare a workspace with a deployed environment",
		Long: `Diff compares the local workspace graph with the runtime graph of an
environment and reports added, removed and changed components, version,
API and config drift, and semver range violations.

The runtime graph comes from the environment's directory in the config
file, or from its newest snapshot ("flowgraph snapshot save").

Exits 1 when any error-severity finding is reported.

Examples:
  flowgraph diff prod
  flowgraph diff staging ./workspace --domain billing --min-severity warning`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := args[0]
			root := rootArg(args[1:])

			floor, err := diff.ParseSeverity(minSeverity)
			if err != nil {
				return err
			}

			var store *snapshot.Store
			if _, configured := a.cfg.Environments[env]; !configured {
				if store, err = a.snapshots(); err != nil {
					return err
				}
			}

			spin := ux.NewSpinner(a.stderr, fmt.Sprintf("comparing %s with %s", root, env))
			svc := a.service(store, spin)

			spin.Start()
			report, err := svc.Diff(cmd.Context(), root, env, domain)
			spin.Stop()
			if err != nil {
				return err
			}

			shown := report.Delta
			if floor != diff.SeverityInfo {
				shown = diff.NewGraphDelta(report.Delta.AtLeast(floor))
			}
			if err := a.emit(report, func(w io.Writer) {
				ux.RenderDelta(w, fmt.Sprintf("Diff %s (%s)", env, report.RuntimeSource), shown)
			}); err != nil {
				return err
			}
			if report.Delta.HasErrors() {
				return findings("%d errors", len(report.Delta.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Compare only components of this domain")
	cmd.Flags().StringVar(&minSeverity, "min-severity", string(diff.SeverityInfo),
		"Lowest severity shown in text output: error, warning, info")
	return cmd
}
