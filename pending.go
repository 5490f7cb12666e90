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
	"sync"
)

// defaultMaxPending bounds asynchronous deliveries when [WithAsync] is used
// without [WithPending].
const defaultMaxPending = 1024

// Pending tracks page views that are being delivered asynchronously, so that
// a server can wait for them before shutting its tracker down.
//
// A Pending may be shared by several middlewares. Once limit deliveries are
// in flight, further page views are delivered synchronously on the request
// goroutine until a slot frees up.
//
// Example:
//
//	pending := analytics.NewPending(256)
//	r.Use(analytics.New(tracker, analytics.WithPending(pending)))
//	// after srv.Shutdown:
//	if err := pending.Wait(ctx); err != nil {
//	    logger.Warn("page views still in flight", "error", err)
//	}
type Pending struct {
	wg sync.WaitGroup

	// slots is nil when deliveries are unbounded
	slots chan struct{}
}

// NewPending returns a Pending allowing at most limit deliveries in flight.
// A limit of zero or less means no limit.
func NewPending(limit int) *Pending {
	p := &Pending{}
	if limit > 0 {
		p.slots = make(chan struct{}, limit)
	}

	return p
}

// Wait blocks until every delivery started so far has finished or ctx is
// done, in which case it returns ctx.Err().
//
// Wait must not run concurrently with requests that may still start
// deliveries; call it after the HTTP server has shut down.
func (p *Pending) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start runs fn in a new goroutine and reports true, or reports false
// without running fn when the limit is reached.
func (p *Pending) start(fn func()) bool {
	if p.slots != nil {
		select {
		case p.slots <- struct{}{}:
		default:
			return false
		}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.slots != nil {
			defer func() { <-p.slots }()
		}
		fn()
	}()

	return true
}
