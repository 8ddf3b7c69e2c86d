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
	"github.com/AleutianAI/flowgraph/services/flowgraph/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record and inspect runtime graphs of environments",
		Long: `Snapshots store the runtime graph of an environment so later diffs can
run without access to it.`,
	}
	cmd.AddCommand(
		newSnapshotSaveCmd(a),
		newSnapshotListCmd(a),
		newSnapshotShowCmd(a),
		newSnapshotDeleteCmd(a),
	)
	return cmd
}

func newSnapshotSaveCmd(a *app) *cobra.Command {
	var dir, note string

	cmd := &cobra.Command{
		Use:   "save <environment>",
		Short: "Snapshot an environment's runtime graph",
		Long: `Save builds the environment's export directory and stores its graph.
The directory comes from --dir or the environment's entry in the config.

Examples:
  flowgraph snapshot save prod
  flowgraph snapshot save prod --dir /exports/prod --note "release 42"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.snapshots()
			if err != nil {
				return err
			}
			spin := ux.NewSpinner(a.stderr, "snapshotting "+args[0])
			svc := a.service(store, spin)

			spin.Start()
			meta, err := svc.SaveSnapshot(cmd.Context(), args[0], dir, note)
			spin.Stop()
			if err != nil {
				return err
			}
			return a.emit(meta, func(w io.Writer) {
				ux.Success(w, fmt.Sprintf("saved snapshot %s of %s (%d nodes, %d edges)",
					meta.ID, meta.Environment, meta.NodeCount, meta.EdgeCount))
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Export directory (default from config)")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note stored with the snapshot")
	return cmd
}

func newSnapshotListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <environment>",
		Short: "List snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.snapshots()
			if err != nil {
				return err
			}
			metas, err := store.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if metas == nil {
				metas = []snapshot.Meta{}
			}
			return a.emit(metas, func(w io.Writer) {
				ux.RenderSnapshots(w, metas)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum snapshots listed (0 = all)")
	return cmd
}

func newSnapshotShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <environment> [id]",
		Short: "Show a snapshot, the newest by default",
		Long: `Show prints a snapshot's metadata. JSON output includes the graph
document.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.snapshots()
			if err != nil {
				return err
			}
			var snap *snapshot.Snapshot
			if len(args) == 2 {
				snap, err = store.Get(cmd.Context(), args[0], args[1])
			} else {
				snap, err = store.Latest(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return a.emit(snap, func(w io.Writer) {
				ux.RenderSnapshots(w, []snapshot.Meta{snap.Meta})
				for _, id := range snap.Graph.NodeIDs() {
					ux.Info(w, id)
				}
			})
		},
	}
}

func newSnapshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <environment> <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.snapshots()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.emit(map[string]string{"deleted": args[1]}, func(w io.Writer) {
				ux.Success(w, "deleted snapshot "+args[1])
			})
		},
	}
}
