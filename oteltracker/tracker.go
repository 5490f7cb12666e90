// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oteltracker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/analytics"
)

const instrumentationName = "rivaas.dev/analytics/oteltracker"

// Tracker is an [analytics.Tracker] backed by OpenTelemetry.
// It is safe for concurrent use.
type Tracker struct {
	tracer trace.Tracer
	cfg    *config

	pageViews       metric.Int64Counter
	customVariables metric.Int64Histogram
}

var _ analytics.Tracker = (*Tracker)(nil)

// New creates a Tracker. It fails only if an instrument cannot be created.
func New(opts ...Option) (*Tracker, error) {
	cfg := &config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	meter := cfg.meterProvider.Meter(instrumentationName)

	pageViews, err := meter.Int64Counter(
		"analytics.pageviews",
		metric.WithDescription("Number of tracked page views"),
		metric.WithUnit("{pageview}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create page view counter: %w", err)
	}

	customVariables, err := meter.Int64Histogram(
		"analytics.pageview.custom_variables",
		metric.WithDescription("Custom variable slots used per page view"),
		metric.WithUnit("{slot}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom variable histogram: %w", err)
	}

	return &Tracker{
		tracer:          cfg.tracerProvider.Tracer(instrumentationName),
		cfg:             cfg,
		pageViews:       pageViews,
		customVariables: customVariables,
	}, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Tracker {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("oteltracker: %v", err))
	}

	return t
}

// TrackPageView records pv as a span and updates the page view metrics.
func (t *Tracker) TrackPageView(ctx context.Context, pv *analytics.PageView) (analytics.Result, error) {
	startOpts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(spanAttributes(t.cfg.account, pv)...),
	}
	if !pv.Timestamp.IsZero() {
		startOpts = append(startOpts, trace.WithTimestamp(pv.Timestamp))
	}

	_, span := t.tracer.Start(ctx, "pageview "+pv.ActionName, startOpts...)
	if pv.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", pv.StatusCode))
	}
	span.End()

	t.pageViews.Add(ctx, 1, metric.WithAttributes(attrAction.String(pv.ActionName)))
	t.customVariables.Record(ctx, int64(len(pv.Variables)))

	if t.cfg.logger != nil {
		t.cfg.logger.DebugContext(ctx, "page view recorded",
			"id", pv.ID,
			"action", pv.ActionName,
			"trace_id", span.SpanContext().TraceID().String(),
		)
	}

	return analytics.Result{Success: true, ID: pv.ID}, nil
}
