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
	"log/slog"
	"time"

	"rivaas.dev/router"
)

// Option defines functional options for the tracking middleware.
type Option func(*config)

// config holds the tracking middleware configuration.
type config struct {
	// actionDescription overrides the computed action name when set
	actionDescription string

	// actionURL overrides the computed action URL when set
	actionURL string

	// controller and action form the "<controller> - <action>" name
	controller string
	action     string

	actionNameFunc func(c *router.Context) string
	actionURLFunc  func(c *router.Context) string

	// trackable decides, after the handler ran, whether to track the request
	trackable func(c *router.Context) bool

	excludePaths map[string]bool

	// includeArguments merges action arguments and their placeholders
	includeArguments bool

	// queryKeys are query parameters recorded as action arguments
	queryKeys []string

	trackingDomain string
	domainResolver func() (string, error)

	logger *slog.Logger

	// timeout bounds a single tracking call (0 = no limit)
	timeout time.Duration

	// async runs tracking calls in a separate goroutine registered on pending
	async   bool
	pending *Pending

	resultHandler func(pv *PageView, res Result, err error)

	// newID generates page view IDs
	newID func() string
}

func defaultConfig() *config {
	return &config{
		trackable:        func(*router.Context) bool { return true },
		excludePaths:     make(map[string]bool),
		includeArguments: true,
		logger:           slog.Default(),
		timeout:          5 * time.Second,
		newID:            generateUUIDv7,
	}
}

// WithActionDescription sets a fixed action name, taking precedence over every
// other naming option.
//
// Example:
//
//	r.GET("/", analytics.New(tracker, analytics.WithActionDescription("Home")), home)
func WithActionDescription(description string) Option {
	return func(c *config) {
		c.actionDescription = description
	}
}

// WithActionURL sets a fixed action URL instead of the request path and query.
func WithActionURL(url string) Option {
	return func(c *config) {
		c.actionURL = url
	}
}

// WithAction names tracked requests "<controller> - <action>".
//
// Example:
//
//	r.GET("/customers/:CustomerId",
//	    analytics.New(tracker, analytics.WithAction("Customers", "Get")),
//	    getCustomer,
//	)
func WithAction(controller, action string) Option {
	return func(c *config) {
		c.controller = controller
		c.action = action
	}
}

// WithActionNameFunc computes the action name from the completed request.
// It is ignored when [WithActionDescription] is set.
func WithActionNameFunc(fn func(c *router.Context) string) Option {
	return func(c *config) {
		c.actionNameFunc = fn
	}
}

// WithActionURLFunc computes the action URL from the completed request.
// It is ignored when [WithActionURL] is set.
func WithActionURLFunc(fn func(c *router.Context) string) Option {
	return func(c *config) {
		c.actionURLFunc = fn
	}
}

// WithTrackable sets the predicate that decides whether a completed request
// is tracked. The default tracks every request.
//
// Example:
//
//	analytics.New(tracker, analytics.WithTrackable(func(c *router.Context) bool {
//	    return c.Request.Method == http.MethodGet
//	}))
func WithTrackable(fn func(c *router.Context) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.trackable = fn
		}
	}
}

// WithSuccessOnly tracks only requests answered with a 2xx status.
func WithSuccessOnly() Option {
	return WithTrackable(func(c *router.Context) bool {
		status := ResponseStatus(c)
		return status >= 200 && status < 300
	})
}

// WithExcludePaths skips tracking for exact path matches.
//
// Example:
//
//	analytics.New(tracker, analytics.WithExcludePaths("/health", "/metrics"))
func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		for _, path := range paths {
			c.excludePaths[path] = true
		}
	}
}

// WithActionArguments controls whether action arguments (route, query and
// [SetArgument] values) are merged into the custom variables, together with
// the placeholders inferred from "Id" arguments. Default: true.
func WithActionArguments(enabled bool) Option {
	return func(c *config) {
		c.includeArguments = enabled
	}
}

// WithQueryArguments records the given query parameters as action arguments
// when they are present on the request.
func WithQueryArguments(keys ...string) Option {
	return func(c *config) {
		c.queryKeys = append(c.queryKeys, keys...)
	}
}

// WithTrackingDomain sets the host reported with every page view. When no
// domain is configured the request host is used.
func WithTrackingDomain(domain string) Option {
	return func(c *config) {
		c.trackingDomain = domain
	}
}

// WithDomainResolver looks up the tracking domain once, when the middleware
// is created, if [WithTrackingDomain] was not given. Errors and panics from
// resolve are ignored and leave the domain unset.
//
// Example:
//
//	analytics.New(tracker, analytics.WithDomainResolver(os.Hostname))
func WithDomainResolver(resolve func() (string, error)) Option {
	return func(c *config) {
		c.domainResolver = resolve
	}
}

// WithLogger sets the logger used to report tracking failures.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithoutLogging disables logging. Useful in tests.
func WithoutLogging() Option {
	return func(c *config) {
		c.logger = nil
	}
}

// WithTimeout bounds each tracking call. Zero disables the limit.
// Default: 5s.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = max(timeout, 0)
	}
}

// WithAsync hands page views to the tracker in a separate goroutine so the
// response is not held up by the tracking call. At most 1024 deliveries per
// middleware are in flight; use [WithPending] to choose the limit and to wait
// for deliveries on shutdown.
func WithAsync() Option {
	return func(c *config) {
		c.async = true
	}
}

// WithPending enables asynchronous tracking and registers every delivery on
// p. A nil p is ignored.
//
// Example:
//
//	pending := analytics.NewPending(256)
//	r.Use(analytics.New(tracker, analytics.WithPending(pending)))
func WithPending(p *Pending) Option {
	return func(c *config) {
		if p != nil {
			c.async = true
			c.pending = p
		}
	}
}

// WithResultHandler registers a function called after every tracking call
// with its result. In async mode it runs on the tracking goroutine.
func WithResultHandler(fn func(pv *PageView, res Result, err error)) Option {
	return func(c *config) {
		c.resultHandler = fn
	}
}

// WithULID uses ULIDs instead of UUID v7 for page view IDs. ULIDs are
// 26 characters long and sort by creation time.
func WithULID() Option {
	return func(c *config) {
		c.newID = generateULID
	}
}

// WithIDGenerator sets a custom page view ID generator. A nil function is
// ignored.
//
// Example:
//
//	analytics.New(tracker, analytics.WithIDGenerator(func() string {
//	    return "pv-" + strconv.FormatInt(time.Now().UnixNano(), 36)
//	}))
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}
