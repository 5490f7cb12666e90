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

// Package analyticstest provides an in-memory [analytics.Tracker] for tests.
package analyticstest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"rivaas.dev/analytics"
)

// ErrTimeout is returned by [Recorder.WaitFor] when too few page views arrive.
var ErrTimeout = errors.New("analyticstest: timed out waiting for page views")

// TB is the part of testing.TB used by [NewRecorder]. It is also satisfied
// by ginkgo's GinkgoT().
type TB interface {
	Helper()
	Cleanup(func())
}

// Recorder is an [analytics.Tracker] that keeps every page view it receives.
// It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	views []analytics.PageView
	err   error

	// changed is closed and replaced whenever a page view is recorded
	changed chan struct{}
}

var _ analytics.Tracker = (*Recorder)(nil)

// NewRecorder returns an empty Recorder. The recorded page views are dropped
// when the test finishes.
//
// Example:
//
//	func TestCustomerPage(t *testing.T) {
//	    t.Parallel()
//	    rec := analyticstest.NewRecorder(t)
//	    r := router.MustNew()
//	    r.GET("/customers/:CustomerId", analytics.New(rec), handler)
//	    // serve a request...
//	    pv, ok := rec.Last()
//	}
func NewRecorder(t TB) *Recorder {
	t.Helper()

	rec := &Recorder{changed: make(chan struct{})}
	t.Cleanup(rec.Reset)

	return rec
}

// TrackPageView stores a copy of pv. When [Recorder.FailWith] set an error
// the page view is still stored and the error is returned.
func (r *Recorder) TrackPageView(_ context.Context, pv *analytics.PageView) (analytics.Result, error) {
	view := *pv
	view.Variables = slices.Clone(pv.Variables)

	r.mu.Lock()
	r.views = append(r.views, view)
	err := r.err
	if r.changed != nil {
		close(r.changed)
	}
	r.changed = make(chan struct{})
	r.mu.Unlock()

	if err != nil {
		return analytics.Result{}, err
	}

	return analytics.Result{Success: true, ID: pv.ID}, nil
}

// FailWith makes subsequent calls return err. A nil err restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// PageViews returns the recorded page views in arrival order.
func (r *Recorder) PageViews() []analytics.PageView {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.views)
}

// Last returns the most recent page view.
func (r *Recorder) Last() (analytics.PageView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.views) == 0 {
		return analytics.PageView{}, false
	}

	return r.views[len(r.views)-1], true
}

// Len returns the number of recorded page views.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.views)
}

// Reset drops all recorded page views and clears the error set by FailWith.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = nil
	r.err = nil
}

// WaitFor blocks until at least n page views were recorded or timeout
// elapses. It is meant for middleware running with analytics.WithAsync.
func (r *Recorder) WaitFor(n int, timeout time.Duration) ([]analytics.PageView, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		r.mu.Lock()
		if len(r.views) >= n {
			views := slices.Clone(r.views)
			r.mu.Unlock()

			return views, nil
		}
		if r.changed == nil {
			r.changed = make(chan struct{})
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			if views := r.PageViews(); len(views) >= n {
				return views, nil
			}

			return nil, fmt.Errorf("%w: got %d, want %d after %v", ErrTimeout, r.Len(), n, timeout)
		}
	}
}
