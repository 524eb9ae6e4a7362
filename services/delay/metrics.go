// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for comparison operations.
var (
	tracer = otel.Tracer("slipline.delay")
	meter  = otel.Meter("slipline.delay")
)

// Metrics for snapshot comparison runs.
var (
	compareLatency metric.Float64Histogram
	compareTotal   metric.Int64Counter
	tasksCompared  metric.Int64Histogram
	tasksSkipped   metric.Int64Histogram
	tracesUnknown  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		compareLatency, err = meter.Float64Histogram(
			"delay_compare_duration_seconds",
			metric.WithDescription("Duration of snapshot comparison runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compareTotal, err = meter.Int64Counter(
			"delay_compare_total",
			metric.WithDescription("Total number of snapshot comparison runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tasksCompared, err = meter.Int64Histogram(
			"delay_tasks_compared",
			metric.WithDescription("Number of common tasks per comparison"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tasksSkipped, err = meter.Int64Histogram(
			"delay_tasks_skipped",
			metric.WithDescription("Number of tasks skipped per comparison"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tracesUnknown, err = meter.Int64Counter(
			"delay_traces_unknown_total",
			metric.WithDescription("Root-cause traces terminated with cause Unknown"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordCompareMetrics records metrics for one comparison run.
func recordCompareMetrics(ctx context.Context, duration time.Duration, result *AnalysisResult, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	compareLatency.Record(ctx, duration.Seconds(), attrs)
	compareTotal.Add(ctx, 1, attrs)

	if !success || result == nil {
		return
	}

	tasksCompared.Record(ctx, int64(len(result.Comparisons)))
	tasksSkipped.Record(ctx, int64(len(result.Skipped)))
	for _, cmp := range result.Comparisons {
		if cmp.CauseType == CauseUnknown {
			tracesUnknown.Add(ctx, 1)
		}
	}
}

// startCompareSpan creates a span for a comparison run.
func startCompareSpan(ctx context.Context, prevID, currID, runID string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, "DelayService.Compare",
		oteltrace.WithAttributes(
			attribute.String("delay.previous_snapshot_id", prevID),
			attribute.String("delay.current_snapshot_id", currID),
			attribute.String("delay.run_id", runID),
		),
	)
}

// setCompareSpanResult sets the result attributes on a comparison span.
func setCompareSpanResult(span oteltrace.Span, result *AnalysisResult) {
	span.SetAttributes(
		attribute.Int("delay.common_tasks", len(result.Comparisons)),
		attribute.Int("delay.skipped_tasks", len(result.Skipped)),
		attribute.Float64("delay.project_slippage_days", result.Metrics.ProjectSlippageDays),
	)
}
