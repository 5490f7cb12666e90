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

package analytics

import (
	"context"
	"fmt"
	"strings"

	"rivaas.dev/router"
)

// New returns a middleware that reports a [PageView] to tracker after the
// handler chain of every tracked request has completed.
//
// Handlers record custom variables with [SetCustomVariable] and extra action
// arguments with [SetArgument]. Route parameters, and the query parameters
// named by [WithQueryArguments], are recorded as action arguments
// automatically. When the request is tracked both sources are merged by a
// [Collector] into at most [MaxCustomVariables] slots.
//
// A nil tracker disables tracking; the middleware then only passes requests
// through.
//
// Example:
//
//	tracker := analytics.NewLogTracker(logger)
//	r.GET("/customers/:CustomerId",
//	    analytics.New(tracker,
//	        analytics.WithAction("Customers", "Get"),
//	        analytics.WithLogger(logger),
//	    ),
//	    getCustomer,
//	)
func New(tracker Tracker, opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if tracker == nil {
		cfg.warn("analytics: no tracker configured, page views are not tracked")

		return func(c *router.Context) {
			c.Next()
		}
	}

	if cfg.trackingDomain == "" && cfg.domainResolver != nil {
		cfg.trackingDomain = resolveDomain(cfg.domainResolver)
	}

	if cfg.async && cfg.pending == nil {
		cfg.pending = NewPending(defaultMaxPending)
	}

	col := Collector{IncludeActionArguments: cfg.includeArguments}

	return func(c *router.Context) {
		if cfg.excludePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		// Reuse the state of an outer tracking middleware on the same route.
		state := stateFrom(c)
		if state == nil {
			state = newRequestState()
			attachState(c, state)
		}
		seedArguments(c, state, cfg.queryKeys)
		status := captureStatus(c)

		c.Next()

		if !cfg.trackable(c) {
			return
		}

		pv := newPageView(c.Request, cfg.trackingDomain, cfg.newID())
		pv.ActionName = cfg.actionName(c)
		pv.ActionURL = cfg.actionURLFor(c)
		pv.RoutePattern = c.RoutePattern()
		pv.StatusCode = status.StatusCode()

		props, args := state.snapshot()
		sink := &CustomVariables{}
		_, dropped := col.populate(sink, props, args)
		pv.Variables = sink.All()
		if dropped > 0 && cfg.logger != nil {
			cfg.logger.DebugContext(c.Request.Context(), "analytics: custom variables truncated",
				"action", pv.ActionName,
				"dropped", dropped,
			)
		}

		// The page view outlives the request when tracked asynchronously.
		ctx := context.WithoutCancel(c.Request.Context())
		if cfg.async && cfg.pending.start(func() { cfg.track(ctx, tracker, pv) }) {
			return
		}
		cfg.track(ctx, tracker, pv)
	}
}

// track delivers pv and reports the outcome. Tracker failures never reach
// the client.
func (cfg *config) track(ctx context.Context, tracker Tracker, pv *PageView) {
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	res, err := safeTrack(ctx, tracker, pv)
	if err != nil && cfg.logger != nil {
		cfg.logger.WarnContext(ctx, "analytics: page view tracking failed",
			"id", pv.ID,
			"action", pv.ActionName,
			"error", err,
		)
	}

	if cfg.resultHandler != nil {
		cfg.resultHandler(pv, res, err)
	}
}

func safeTrack(ctx context.Context, tracker Tracker, pv *PageView) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("%w: %v", ErrTrackerPanic, r)
		}
	}()

	return tracker.TrackPageView(ctx, pv)
}

// resolveDomain runs resolve and discards any failure.
func resolveDomain(resolve func() (string, error)) (domain string) {
	defer func() {
		if recover() != nil {
			domain = ""
		}
	}()

	d, err := resolve()
	if err != nil {
		return ""
	}

	return strings.TrimSpace(d)
}

// actionName picks the action name: a fixed description, then a custom
// function, then "<controller> - <action>", then "<METHOD> <route>".
func (cfg *config) actionName(c *router.Context) string {
	switch {
	case cfg.actionDescription != "":
		return cfg.actionDescription
	case cfg.actionNameFunc != nil:
		return cfg.actionNameFunc(c)
	case cfg.controller != "" || cfg.action != "":
		return cfg.controller + " - " + cfg.action
	}

	route := c.RoutePattern()
	if route == "" {
		route = c.Request.URL.Path
	}

	return c.Request.Method + " " + route
}

func (cfg *config) actionURLFor(c *router.Context) string {
	switch {
	case cfg.actionURL != "":
		return cfg.actionURL
	case cfg.actionURLFunc != nil:
		return cfg.actionURLFunc(c)
	}

	return c.Request.URL.RequestURI()
}

func (cfg *config) warn(msg string) {
	if cfg.logger != nil {
		cfg.logger.Warn(msg)
	}
}

