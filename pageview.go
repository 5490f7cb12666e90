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
	"crypto/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// PageView is the event handed to a [Tracker] when a tracked route completes.
// It owns all of its data and stays valid after the request has finished.
type PageView struct {
	// ID uniquely identifies the page view. It is a UUID v7 unless
	// [WithULID] or [WithIDGenerator] is used.
	ID string

	// ActionName is the human-readable name of the action, e.g. "Customers - Get".
	ActionName string

	// ActionURL is the tracked URL, by default the request path and query.
	ActionURL string

	// Host is the tracking domain.
	Host string

	Method       string
	RoutePattern string
	StatusCode   int
	UserAgent    string
	Referrer     string
	RemoteAddr   string
	Language     string
	Timestamp    time.Time

	// Variables holds the custom variable slots in position order.
	Variables []Variable
}

// newPageView copies the request metadata the trackers need.
func newPageView(r *http.Request, host, id string) *PageView {
	if host == "" {
		host = hostname(r.Host)
	}

	return &PageView{
		ID:         id,
		Host:       host,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		Referrer:   r.Referer(),
		RemoteAddr: r.RemoteAddr,
		Language:   r.Header.Get("Accept-Language"),
		Timestamp:  time.Now(),
	}
}

// generateUUIDv7 returns a time-ordered UUID, falling back to v4.
func generateUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// ulidEntropy gives monotonic ULIDs within the same millisecond.
var (
	ulidEntropy     = ulid.Monotonic(rand.Reader, 0)
	ulidEntropyLock sync.Mutex
)

func generateULID() string {
	ulidEntropyLock.Lock()
	defer ulidEntropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// hostname strips the port from a Host header value.
func hostname(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}

	return hostport
}

// Variable returns the variable in the given slot.
func (pv *PageView) Variable(position int) (Variable, bool) {
	for _, v := range pv.Variables {
		if v.Position == position {
			return v, true
		}
	}

	return Variable{}, false
}
