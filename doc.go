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

// Package analytics provides middleware that reports page views, together
// with up to five custom variables, to a web analytics backend.
//
// The middleware wraps a route's handler chain. After the handler returns it
// builds a [PageView] from the request and hands it to a [Tracker].
//
// # Basic Usage
//
//	import "rivaas.dev/analytics"
//
//	tracker := analytics.NewLogTracker(logger)
//
//	r := router.MustNew()
//	r.GET("/customers/:CustomerId",
//	    analytics.New(tracker, analytics.WithAction("Customers", "Get")),
//	    getCustomer,
//	)
//
// # Custom Variables
//
// Custom variables come from two sources:
//
//   - Request properties, recorded by handlers with [SetCustomVariable]
//   - Action arguments: route parameters, query parameters named by
//     [WithQueryArguments], and values recorded with [SetArgument]
//
// A [Collector] merges both sources, sorts the entries by name (byte order,
// stable) and keeps the first [MaxCustomVariables]. For every action argument
// named "<X>Id" without a "<X>Name" request property, it adds the entry
// "<X>NamePlaceholder" = "0". This keeps the slot layout of a page view
// stable when a cached response skips the handler that records "<X>Name".
//
//	func getCustomer(c *router.Context) {
//	    customer := load(c.Param("CustomerId"))
//	    analytics.SetCustomVariable(c, "CustomerName", customer.Name)
//	    c.JSON(http.StatusOK, customer)
//	}
//
// Action arguments can be left out with WithActionArguments(false).
//
// # Configuration Options
//
//   - [WithActionDescription], [WithAction], [WithActionNameFunc]: Action name
//   - [WithActionURL], [WithActionURLFunc]: Action URL (default: request URI)
//   - [WithTrackable], [WithSuccessOnly], [WithExcludePaths]: Which requests to track
//   - [WithTrackingDomain], [WithDomainResolver]: Reported host
//   - [WithTimeout], [WithAsync], [WithResultHandler]: Delivery
//   - [WithLogger], [WithoutLogging]: Failure reporting
//
// # Trackers
//
// [NewLogTracker] writes page views to a slog.Logger. [Multi] fans out to
// several trackers. The oteltracker subpackage records page views as
// OpenTelemetry spans and metrics, and analyticstest provides a recording
// tracker for tests.
//
// Tracker errors and panics are logged and passed to the result handler.
// They never change the response.
package analytics
