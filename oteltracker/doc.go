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

// Package oteltracker records analytics page views with OpenTelemetry.
//
// Every page view becomes one span named "pageview <action>" that carries
// the action, URL, host, route and one attribute pair per custom variable
// slot. Two instruments are updated as well:
//
//   - analytics.pageviews: counter of tracked page views, by action
//   - analytics.pageview.custom_variables: histogram of occupied slots
//
// # Basic Usage
//
//	tracker, err := oteltracker.New(
//	    oteltracker.WithTracerProvider(tp),
//	    oteltracker.WithMeterProvider(mp),
//	    oteltracker.WithAccount("UA-12345-1"),
//	)
//	if err != nil {
//	    return err
//	}
//	r.GET("/customers/:CustomerId", analytics.New(tracker), getCustomer)
//
// Without provider options the global providers from otel.GetTracerProvider
// and otel.GetMeterProvider are used.
//
// The span is started from the context handed to TrackPageView, so with the
// router's tracing enabled it becomes a child of the request span.
package oteltracker
