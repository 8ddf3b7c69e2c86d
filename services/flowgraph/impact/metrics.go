// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for impact analysis.
var (
	tracer = otel.Tracer("flowgraph.impact")
	meter  = otel.Meter("flowgraph.impact")
)

// Metrics for impact analysis.
var (
	analysisLatency    metric.Float64Histogram
	analysisTotal      metric.Int64Counter
	affectedComponents metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"flowgraph_impact_duration_seconds",
			metric.WithDescription("Duration of impact analysis operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"flowgraph_impact_total",
			metric.WithDescription("Total number of impact analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		affectedComponents, err = meter.Int64Histogram(
			"flowgraph_impact_affected_components",
			metric.WithDescription("Number of dependents found per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalysisSpan creates a span for an impact analysis.
func startAnalysisSpan(ctx context.Context, startIDs []string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "impact.ImpactCone",
		trace.WithAttributes(
			attribute.StringSlice("impact.start_ids", startIDs),
		),
	)
}

// setAnalysisSpanResult sets the result attributes on an analysis span.
func setAnalysisSpanResult(span trace.Span, r *Result) {
	span.SetAttributes(
		attribute.String("impact.risk_level", string(r.Stats.Risk)),
		attribute.Int("impact.dependents", r.Stats.Dependents),
		attribute.Int("impact.max_depth", r.Stats.MaxDepthReached),
		attribute.Bool("impact.truncated", r.Truncated),
	)
}

// recordAnalysisMetrics records metrics for an impact analysis.
func recordAnalysisMetrics(ctx context.Context, duration time.Duration, r *Result) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("risk_level", string(r.Stats.Risk)),
		attribute.Bool("truncated", r.Truncated),
	)

	analysisLatency.Record(ctx, duration.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)
	affectedComponents.Record(ctx, int64(r.Stats.Dependents))
}
