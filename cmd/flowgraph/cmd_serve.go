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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowgraph/services/flowgraph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/snapshot"
	"github.com/AleutianAI/flowgraph/services/flowgraph/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		port        int
		noSnapshots bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flowgraph HTTP API",
		Long: `Serve exposes build, check, diff, impact and path under /v1/flowgraph,
plus /metrics when Prometheus metrics are enabled in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.logger.Slog().With(slog.String("component", "server"))
			tcfg := a.cfg.Telemetry

			shutdown, err := telemetry.Init(ctx, telemetry.Config{
				ServiceName:    tcfg.ServiceName,
				ServiceVersion: flowgraph.ServiceVersion,
				TraceExporter:  tcfg.Traces,
				MetricExporter: tcfg.Metrics,
				OTLPEndpoint:   tcfg.OTLPEndpoint,
				OTLPInsecure:   true,
			})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
				}
			}()

			var store *snapshot.Store
			if !noSnapshots {
				if store, err = a.snapshots(); err != nil {
					return err
				}
			}

			gin.SetMode(gin.ReleaseMode)
			var metrics http.Handler
			if tcfg.Metrics == telemetry.ExporterPrometheus {
				metrics = telemetry.MetricsHandler()
			}
			svc := a.service(store, nil)
			router := flowgraph.NewRouter(tcfg.ServiceName, flowgraph.NewHandlers(svc, a.logger.Slog()), metrics)

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", slog.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")
	cmd.Flags().BoolVar(&noSnapshots, "no-snapshots", false, "Run without the snapshot store")
	return cmd
}
