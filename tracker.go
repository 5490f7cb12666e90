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
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// Result is the outcome of a tracking call.
type Result struct {
	// Success reports whether the tracker accepted the page view.
	Success bool

	// ID is the page view ID the tracker accepted.
	ID string
}

// Tracker delivers page views to an analytics backend.
//
// How a page view reaches the backend is up to the implementation.
// TrackPageView may be called concurrently from many requests and must not
// retain pv beyond the call unless it copies it.
type Tracker interface {
	TrackPageView(ctx context.Context, pv *PageView) (Result, error)
}

// TrackerFunc adapts a function to the [Tracker] interface.
type TrackerFunc func(ctx context.Context, pv *PageView) (Result, error)

// TrackPageView calls f(ctx, pv).
func (f TrackerFunc) TrackPageView(ctx context.Context, pv *PageView) (Result, error) {
	return f(ctx, pv)
}

type multiTracker []Tracker

// Multi returns a Tracker that sends every page view to each of trackers in
// order. The result is successful only if every tracker succeeded; errors are
// joined.
func Multi(trackers ...Tracker) Tracker {
	out := make(multiTracker, 0, len(trackers))
	for _, t := range trackers {
		if t != nil {
			out = append(out, t)
		}
	}

	return out
}

func (m multiTracker) TrackPageView(ctx context.Context, pv *PageView) (Result, error) {
	res := Result{Success: true, ID: pv.ID}
	var errs []error
	for i, t := range m {
		r, err := t.TrackPageView(ctx, pv)
		if err != nil {
			errs = append(errs, fmt.Errorf("tracker %d: %w", i, err))
		}
		if err != nil || !r.Success {
			res.Success = false
		}
	}

	return res, errors.Join(errs...)
}

// NewLogTracker returns a Tracker that writes each page view as one
// structured log record at info level. Custom variables are grouped by
// position, since names may repeat. A nil logger uses slog.Default().
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	r.Use(analytics.New(analytics.NewLogTracker(logger)))
func NewLogTracker(logger *slog.Logger) Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return TrackerFunc(func(ctx context.Context, pv *PageView) (Result, error) {
		vars := make([]any, 0, len(pv.Variables))
		for _, v := range pv.Variables {
			vars = append(vars, slog.Group(strconv.Itoa(v.Position),
				slog.String("name", v.Name),
				slog.String("value", v.Value),
			))
		}

		logger.LogAttrs(ctx, slog.LevelInfo, "page view",
			slog.String("id", pv.ID),
			slog.String("action", pv.ActionName),
			slog.String("url", pv.ActionURL),
			slog.String("host", pv.Host),
			slog.String("route", pv.RoutePattern),
			slog.Int("status", pv.StatusCode),
			slog.Group("custom_variables", vars...),
		)

		return Result{Success: true, ID: pv.ID}, nil
	})
}
