// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

var (
	tracer = otel.Tracer("flowgraph.diff")
	meter  = otel.Meter("flowgraph.diff")
)

var (
	diffLatency metric.Float64Histogram
	diffTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// violationsTotal counts reported violations, exposed on /metrics.
var violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flowgraph_violations_total",
	Help: "Total violations reported by diff and health checks, by kind and severity",
}, []string{"kind", "severity"})

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		diffLatency, err = meter.Float64Histogram(
			"flowgraph_diff_duration_seconds",
			metric.WithDescription("Duration of graph diffs and health checks"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diffTotal, err = meter.Int64Counter(
			"flowgraph_diff_total",
			metric.WithDescription("Total number of graph diffs and health checks"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordDiffMetrics(ctx context.Context, op string, duration time.Duration, delta *GraphDelta) {
	for _, v := range delta.Violations {
		violationsTotal.WithLabelValues(string(v.Kind), string(v.Severity)).Inc()
	}

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("has_errors", delta.HasErrors()),
	)
	diffLatency.Record(ctx, duration.Seconds(), attrs)
	diffTotal.Add(ctx, 1, attrs)
}

func startDiffSpan(ctx context.Context, local, runtime *graph.Graph) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if local != nil {
		attrs = append(attrs, attribute.Int("flowgraph.local_nodes", local.NodeCount()))
	}
	if runtime != nil {
		attrs = append(attrs, attribute.Int("flowgraph.runtime_nodes", runtime.NodeCount()))
	}
	return tracer.Start(ctx, "diff.Diff", trace.WithAttributes(attrs...))
}

func setDiffSpanResult(span trace.Span, delta *GraphDelta) {
	span.SetAttributes(
		attribute.Int("flowgraph.violations", delta.Stats.Total),
		attribute.Int("flowgraph.errors", len(delta.Errors)),
		attribute.Int("flowgraph.warnings", len(delta.Warnings)),
	)
}
