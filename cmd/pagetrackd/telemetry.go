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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// telemetry holds the providers used by the page view tracker.
type telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// metricsHandler serves the Prometheus registry; nil unless metrics
	// are exported to Prometheus
	metricsHandler http.Handler

	shutdowns []func(context.Context) error
}

// newTelemetry builds the configured providers. Stdout exporters write to w.
func newTelemetry(ctx context.Context, cfg TelemetryConfig, version string, w io.Writer) (*telemetry, error) {
	t := &telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	)

	if err := t.initTraces(ctx, cfg, res, w); err != nil {
		return nil, errors.Join(err, t.shutdown(context.Background()))
	}
	if err := t.initMetrics(ctx, cfg, res, w); err != nil {
		return nil, errors.Join(err, t.shutdown(context.Background()))
	}

	return t, nil
}

func (t *telemetry) initTraces(ctx context.Context, cfg TelemetryConfig, res *resource.Resource, w io.Writer) error {
	var exporter sdktrace.SpanExporter
	switch cfg.Traces {
	case "stdout":
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		exporter = exp
	case "otlp-grpc":
		var opts []otlptracegrpc.Option
		if endpoint, insecure := splitEndpoint(cfg.OTLPEndpoint); endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
			if insecure {
				opts = append(opts, otlptracegrpc.WithInsecure())
			}
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP gRPC trace exporter: %w", err)
		}
		exporter = exp
	case "otlp":
		var opts []otlptracehttp.Option
		if endpoint, insecure := splitEndpoint(cfg.OTLPEndpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
			if insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		exporter = exp
	default:
		return nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.tracerProvider = tp
	t.shutdowns = append(t.shutdowns, tp.Shutdown)

	return nil
}

func (t *telemetry) initMetrics(ctx context.Context, cfg TelemetryConfig, res *resource.Resource, w io.Writer) error {
	var reader sdkmetric.Reader
	switch cfg.Metrics {
	case "prometheus":
		// A private registry keeps the exporter clear of the global one.
		registry := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exp
		t.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.ExportInterval))
	case "otlp-grpc":
		var opts []otlpmetricgrpc.Option
		if endpoint, insecure := splitEndpoint(cfg.OTLPEndpoint); endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
			if insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP gRPC metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.ExportInterval))
	case "otlp":
		var opts []otlpmetrichttp.Option
		if endpoint, insecure := splitEndpoint(cfg.OTLPEndpoint); endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
			if insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.ExportInterval))
	default:
		return nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	t.meterProvider = mp
	t.shutdowns = append(t.shutdowns, mp.Shutdown)

	return nil
}

// splitEndpoint turns "http://host:4318/v1" into "host:4318" and reports
// whether the plain HTTP scheme was used.
func splitEndpoint(raw string) (endpoint string, insecure bool) {
	endpoint = raw
	if trimmed, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint = trimmed
		insecure = true
	} else if trimmed, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint = trimmed
	}
	if host, _, found := strings.Cut(endpoint, "/"); found {
		endpoint = host
	}

	return endpoint, insecure
}

// shutdown flushes and stops every provider.
func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
