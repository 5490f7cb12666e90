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
	"log/slog"
	"net/http"
	"os"
	"slices"

	"rivaas.dev/analytics"
	"rivaas.dev/router"
)

type customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// store is the fixed demo data set.
type store struct {
	customers map[string]customer
	orders    map[string]order
}

func newStore() *store {
	return &store{
		customers: map[string]customer{
			"1": {ID: "1", Name: "Acme Corp"},
			"2": {ID: "2", Name: "Globex"},
		},
		orders: map[string]order{
			"100": {ID: "100", Status: "shipped"},
			"101": {ID: "101", Status: "pending"},
		},
	}
}

// trackingOptions translates the tracking configuration. Asynchronous
// deliveries are registered on pending so that run can wait for them.
func trackingOptions(cfg *Config, logger *slog.Logger, pending *analytics.Pending) []analytics.Option {
	excluded := append([]string{"/health", cfg.Telemetry.MetricsPath}, cfg.Tracking.ExcludePaths...)
	opts := []analytics.Option{
		analytics.WithLogger(logger),
		analytics.WithActionArguments(cfg.Tracking.IncludeActionArguments),
		analytics.WithQueryArguments(cfg.Tracking.QueryArguments...),
		analytics.WithExcludePaths(excluded...),
		analytics.WithTimeout(cfg.Tracking.Timeout),
	}
	if cfg.Tracking.Domain != "" {
		opts = append(opts, analytics.WithTrackingDomain(cfg.Tracking.Domain))
	} else {
		opts = append(opts, analytics.WithDomainResolver(os.Hostname))
	}
	if cfg.Tracking.Async {
		if pending == nil {
			pending = analytics.NewPending(cfg.Tracking.MaxPending)
		}
		opts = append(opts, analytics.WithPending(pending))
	}

	return opts
}

// newRouter registers the demo routes. Every tracked route gets its own
// middleware instance so that it reports its own action name.
func newRouter(cfg *Config, logger *slog.Logger, tracker analytics.Tracker, pending *analytics.Pending, metrics http.Handler) (*router.Router, error) {
	r, err := router.New()
	if err != nil {
		return nil, err
	}

	s := newStore()
	base := trackingOptions(cfg, logger, pending)
	track := func(controller, action string) router.HandlerFunc {
		return analytics.New(tracker, append(slices.Clip(base), analytics.WithAction(controller, action))...)
	}

	r.GET("/health", func(c *router.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/customers/:CustomerId", track("Customers", "Get"), func(c *router.Context) {
		cust, ok := s.customers[c.Param("CustomerId")]
		if !ok {
			writeJSON(c, logger, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		analytics.SetCustomVariable(c, "CustomerName", cust.Name)
		writeJSON(c, logger, http.StatusOK, cust)
	})

	// Orders never record OrderName, so their page views carry the
	// OrderNamePlaceholder slot.
	r.GET("/orders/:OrderId", track("Orders", "Get"), func(c *router.Context) {
		o, ok := s.orders[c.Param("OrderId")]
		if !ok {
			writeJSON(c, logger, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		analytics.SetCustomVariable(c, "OrderStatus", o.Status)
		writeJSON(c, logger, http.StatusOK, o)
	})

	if metrics != nil {
		r.GET(cfg.Telemetry.MetricsPath, func(c *router.Context) {
			metrics.ServeHTTP(c.Response, c.Request)
		})
	}

	return r, nil
}

func writeJSON(c *router.Context, logger *slog.Logger, code int, v any) {
	if err := c.JSON(code, v); err != nil {
		logger.ErrorContext(c.Request.Context(), "failed to write response", "error", err)
	}
}
