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
	"maps"
	"strings"
	"sync"

	"rivaas.dev/router"
)

type contextKey struct{}

// requestState holds the two custom variable sources of one tracked request.
// Handlers may record values from helper goroutines, so access is locked.
type requestState struct {
	mu         sync.Mutex
	properties map[string]string
	arguments  map[string]any
}

func newRequestState() *requestState {
	return &requestState{
		properties: make(map[string]string),
		arguments:  make(map[string]any),
	}
}

func (s *requestState) setProperty(name, value string) {
	s.mu.Lock()
	s.properties[name] = value
	s.mu.Unlock()
}

func (s *requestState) setArgument(name string, value any) {
	s.mu.Lock()
	s.arguments[name] = value
	s.mu.Unlock()
}

// snapshot returns copies of both sources.
func (s *requestState) snapshot() (map[string]string, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.properties), maps.Clone(s.arguments)
}

func stateFrom(c *router.Context) *requestState {
	if c == nil || c.Request == nil {
		return nil
	}
	s, _ := c.Request.Context().Value(contextKey{}).(*requestState)

	return s
}

func attachState(c *router.Context, s *requestState) {
	ctx := context.WithValue(c.Request.Context(), contextKey{}, s)
	c.Request = c.Request.WithContext(ctx)
}

// SetCustomVariable records a custom variable for the current request. It is
// merged with the action arguments when the request is tracked.
//
// SetCustomVariable is a no-op when the tracking middleware is not installed
// for the route.
//
// Example:
//
//	r.GET("/customers/:CustomerId", func(c *router.Context) {
//	    customer := load(c.Param("CustomerId"))
//	    analytics.SetCustomVariable(c, "CustomerName", customer.Name)
//	    c.JSON(http.StatusOK, customer)
//	})
func SetCustomVariable(c *router.Context, name, value string) {
	if s := stateFrom(c); s != nil {
		s.setProperty(name, value)
	}
}

// SetArgument records an action argument for the current request, such as a
// field decoded from the request body. It overrides a route or query
// parameter of the same name. value may be nil.
//
// SetArgument is a no-op when the tracking middleware is not installed for
// the route.
func SetArgument(c *router.Context, name string, value any) {
	if s := stateFrom(c); s != nil {
		s.setArgument(name, value)
	}
}

// RequestProperties returns a copy of the custom variables recorded for the
// current request, or nil when the tracking middleware is not installed.
func RequestProperties(c *router.Context) map[string]string {
	s := stateFrom(c)
	if s == nil {
		return nil
	}
	props, _ := s.snapshot()

	return props
}

// ActionArguments returns a copy of the action arguments recorded for the
// current request, or nil when the tracking middleware is not installed.
func ActionArguments(c *router.Context) map[string]any {
	s := stateFrom(c)
	if s == nil {
		return nil
	}
	_, args := s.snapshot()

	return args
}

// routeParamNames extracts parameter names from a route pattern such as
// "/customers/:CustomerId/files/*path".
func routeParamNames(pattern string) []string {
	var names []string
	for segment := range strings.SplitSeq(pattern, "/") {
		if len(segment) < 2 {
			continue
		}
		switch segment[0] {
		case ':', '*':
			names = append(names, segment[1:])
		}
	}

	return names
}

// seedArguments records route and query parameters as action arguments.
func seedArguments(c *router.Context, s *requestState, queryKeys []string) {
	for _, name := range routeParamNames(c.RoutePattern()) {
		s.setArgument(name, c.Param(name))
	}
	if len(queryKeys) == 0 {
		return
	}
	query := c.Request.URL.Query()
	for _, key := range queryKeys {
		if query.Has(key) {
			s.setArgument(key, query.Get(key))
		}
	}
}
