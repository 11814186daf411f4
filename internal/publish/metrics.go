// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for publish operations.
var (
	tracer = otel.Tracer("flagforge.publish")
	meter  = otel.Meter("flagforge.publish")
)

// Metrics for publish operations.
var (
	publishLatency  metric.Float64Histogram
	publishTotal    metric.Int64Counter
	publishFailures metric.Int64Counter
	artifactBytes   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		publishLatency, err = meter.Float64Histogram(
			"publish_duration_seconds",
			metric.WithDescription("Duration of publish operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		publishTotal, err = meter.Int64Counter(
			"publish_total",
			metric.WithDescription("Total number of publish attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		publishFailures, err = meter.Int64Counter(
			"publish_failures_total",
			metric.WithDescription("Publish failures by pipeline stage"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		artifactBytes, err = meter.Int64Histogram(
			"publish_artifact_bytes",
			metric.WithDescription("Size of uploaded signed artifacts"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// withStage labels a failure counter increment with the pipeline stage.
func withStage(stage Stage) metric.AddOption {
	return metric.WithAttributes(attribute.String("stage", string(stage)))
}
