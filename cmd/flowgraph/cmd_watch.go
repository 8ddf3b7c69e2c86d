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
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowgraph/pkg/ux"
	"github.com/AleutianAI/flowgraph/services/flowgraph/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-check a workspace whenever its component files change",
		Long: `Watch runs a check, then runs it again after every batch of changes to
component files until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(rootArg(args))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc := a.service(nil, nil)

			check := func(ctx context.Context, reason string) {
				report, err := svc.Check(ctx, root)
				if err != nil {
					if ctx.Err() == nil {
						ux.Error(a.stderr, err.Error())
					}
					return
				}
				if err := a.emit(report, func(w io.Writer) {
					ux.RenderDelta(w, fmt.Sprintf("Check %s (%s)", root, reason), report.Delta)
				}); err != nil {
					a.logger.Warn("write report", slog.String("error", err.Error()))
				}
			}

			check(ctx, "initial")

			w, err := watch.New(root, func(ctx context.Context, changes []watch.Change) {
				check(ctx, fmt.Sprintf("%d files changed", len(changes)))
			},
				watch.WithDebounce(debounce),
				watch.WithExcludedSuffixes(a.cfg.Build.ExcludedSuffixes...),
				watch.WithLogger(a.logger.Slog()),
			)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			ux.Muted(a.stderr, "watching "+root+", press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultOptions().Debounce,
		"Quiet period before a batch of changes is checked")
	return cmd
}
