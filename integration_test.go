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

// Integration tests run the tracking middleware on a full router together
// with the OpenTelemetry tracker and concurrent traffic.

//go:build integration

package analytics_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"rivaas.dev/analytics"
	"rivaas.dev/analytics/analyticstest"
	"rivaas.dev/analytics/oteltracker"
	"rivaas.dev/router"
)

// newSuiteRecorder returns a recorder reset when the current test node ends.
func newSuiteRecorder() *analyticstest.Recorder {
	return analyticstest.NewRecorder(GinkgoT())
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key(key) {
			return kv.Value.Emit()
		}
	}

	return ""
}

var _ = Describe("Tracking middleware", func() {
	var (
		rec *analyticstest.Recorder
		r   *router.Router
	)

	BeforeEach(func() {
		rec = newSuiteRecorder()
		r = router.MustNew()
		r.GET("/customers/:CustomerId",
			analytics.New(rec, analytics.WithAction("Customers", "Get"), analytics.WithoutLogging()),
			func(c *router.Context) {
				id := c.Param("CustomerId")
				if id != "cached" {
					analytics.SetCustomVariable(c, "CustomerName", "Customer "+id)
				}
				c.Status(http.StatusOK)
			},
		)
	})

	Context("under concurrent traffic", func() {
		It("keeps every request's variables separate", func() {
			const requests = 50

			var wg sync.WaitGroup
			for i := range requests {
				wg.Go(func() {
					req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/customers/%d", i), nil)
					r.ServeHTTP(httptest.NewRecorder(), req)
				})
			}
			wg.Wait()

			views := rec.PageViews()
			Expect(views).To(HaveLen(requests))
			for _, pv := range views {
				Expect(pv.Variables).To(HaveLen(2))
				id := pv.Variables[0].Value
				Expect(pv.Variables[0].Name).To(Equal("CustomerId"))
				Expect(pv.Variables[1]).To(Equal(analytics.Variable{
					Position: 2, Name: "CustomerName", Value: "Customer " + id,
				}))
			}
		})
	})

	Context("when the handler does not record the name", func() {
		It("reserves the name slot with a placeholder", func() {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/customers/cached", nil))

			pv, ok := rec.Last()
			Expect(ok).To(BeTrue())
			Expect(pv.Variables).To(Equal([]analytics.Variable{
				{Position: 1, Name: "CustomerId", Value: "cached"},
				{Position: 2, Name: "CustomerNamePlaceholder", Value: "0"},
			}))
		})
	})
})

var _ = Describe("Tracking with the OpenTelemetry tracker", func() {
	var (
		spans *tracetest.SpanRecorder
		tp    *sdktrace.TracerProvider
	)

	BeforeEach(func() {
		spans = tracetest.NewSpanRecorder()
		tp = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
		DeferCleanup(func() {
			Expect(tp.Shutdown(context.Background())).To(Succeed())
		})
	})

	It("records asynchronous page views as spans", func() {
		rec := newSuiteRecorder()
		tracker := analytics.Multi(rec, oteltracker.MustNew(oteltracker.WithTracerProvider(tp)))

		r := router.MustNew()
		r.GET("/orders/:OrderId",
			analytics.New(tracker, analytics.WithAsync(), analytics.WithoutLogging()),
			func(c *router.Context) { c.Status(http.StatusOK) },
		)

		for i := range 5 {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, fmt.Sprintf("/orders/%d", i), nil))
		}

		_, err := rec.WaitFor(5, 2*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int { return len(spans.Ended()) }).WithTimeout(2 * time.Second).Should(Equal(5))

		for _, span := range spans.Ended() {
			Expect(span.Name()).To(Equal("pageview GET /orders/:OrderId"))
			Expect(spanAttr(span, "analytics.custom_variable.1.name")).To(Equal("OrderId"))
			Expect(spanAttr(span, "analytics.custom_variable.2.name")).To(Equal("OrderNamePlaceholder"))
		}
	})

	It("keeps serving when one tracker fails", func() {
		rec := newSuiteRecorder()
		rec.FailWith(fmt.Errorf("backend unavailable"))
		tracker := analytics.Multi(rec, oteltracker.MustNew(oteltracker.WithTracerProvider(tp)))

		var results []analytics.Result
		var mu sync.Mutex
		r := router.MustNew()
		r.GET("/", analytics.New(tracker,
			analytics.WithoutLogging(),
			analytics.WithResultHandler(func(_ *analytics.PageView, res analytics.Result, _ error) {
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}),
		), func(c *router.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(spans.Ended()).To(HaveLen(1))
		mu.Lock()
		defer mu.Unlock()
		Expect(results).To(HaveLen(1))
		Expect(results[0].Success).To(BeFalse())
	})
})
