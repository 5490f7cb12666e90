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

//go:build !integration

package oteltracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"rivaas.dev/analytics"
	"rivaas.dev/router"
)

type testProviders struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	opts   []Option
}

func newTestProviders(t *testing.T) *testProviders {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx) //nolint:errcheck // best-effort cleanup
		_ = mp.Shutdown(ctx) //nolint:errcheck // best-effort cleanup
	})

	return &testProviders{
		spans:  spans,
		reader: reader,
		opts:   []Option{WithTracerProvider(tp), WithMeterProvider(mp)},
	}
}

func (p *testProviders) collect(t *testing.T) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, p.reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}

	return out
}

func TestTracker_RecordsSpan(t *testing.T) {
	t.Parallel()

	p := newTestProviders(t)
	tracker, err := New(append(p.opts, WithAccount("UA-1"))...)
	require.NoError(t, err)

	pv := &analytics.PageView{
		ID:           "pv-1",
		ActionName:   "Customers - Get",
		ActionURL:    "/customers/42",
		Host:         "example.com",
		Method:       http.MethodGet,
		RoutePattern: "/customers/:CustomerId",
		StatusCode:   http.StatusOK,
		Timestamp:    time.Now(),
		Variables: []analytics.Variable{
			{Position: 1, Name: "CustomerId", Value: "42"},
			{Position: 2, Name: "CustomerNamePlaceholder", Value: "0"},
		},
	}

	res, err := tracker.TrackPageView(context.Background(), pv)
	require.NoError(t, err)
	assert.Equal(t, analytics.Result{Success: true, ID: "pv-1"}, res)

	ended := p.spans.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "pageview Customers - Get", span.Name())
	assert.Equal(t, codes.Unset, span.Status().Code)

	attrs := attrMap(span.Attributes())
	assert.Equal(t, "UA-1", attrs["analytics.account"])
	assert.Equal(t, "/customers/42", attrs["analytics.url"])
	assert.Equal(t, "/customers/:CustomerId", attrs["http.route"])
	assert.Equal(t, "200", attrs["http.response.status_code"])
	assert.Equal(t, "CustomerId", attrs["analytics.custom_variable.1.name"])
	assert.Equal(t, "42", attrs["analytics.custom_variable.1.value"])
	assert.Equal(t, "CustomerNamePlaceholder", attrs["analytics.custom_variable.2.name"])
	assert.Equal(t, "0", attrs["analytics.custom_variable.2.value"])
	assert.NotContains(t, attrs, "analytics.custom_variable.3.name")
}

func TestTracker_ErrorStatus(t *testing.T) {
	t.Parallel()

	p := newTestProviders(t)
	tracker := MustNew(p.opts...)

	_, err := tracker.TrackPageView(context.Background(), &analytics.PageView{
		ActionName: "Orders - Get",
		StatusCode: http.StatusNotFound,
	})
	require.NoError(t, err)

	ended := p.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.NotContains(t, attrMap(ended[0].Attributes()), "analytics.account")
}

func TestTracker_Metrics(t *testing.T) {
	t.Parallel()

	p := newTestProviders(t)
	tracker := MustNew(p.opts...)
	ctx := context.Background()

	for _, n := range []int{0, 2, 5} {
		vars := make([]analytics.Variable, n)
		for i := range vars {
			vars[i] = analytics.Variable{Position: i + 1, Name: "V", Value: "x"}
		}
		_, err := tracker.TrackPageView(ctx, &analytics.PageView{ActionName: "Home", Variables: vars})
		require.NoError(t, err)
	}

	metrics := p.collect(t)

	counter, ok := metrics["analytics.pageviews"]
	require.True(t, ok)
	sum, ok := counter.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	action, _ := sum.DataPoints[0].Attributes.Value("analytics.action")
	assert.Equal(t, "Home", action.AsString())

	hist, ok := metrics["analytics.pageview.custom_variables"]
	require.True(t, ok)
	h, ok := hist.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(3), h.DataPoints[0].Count)
	assert.Equal(t, int64(7), h.DataPoints[0].Sum)
}

func TestTracker_ChildOfRequestSpan(t *testing.T) {
	t.Parallel()

	p := newTestProviders(t)
	tracker := MustNew(p.opts...)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(p.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) }) //nolint:errcheck // best-effort cleanup

	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")
	_, err := tracker.TrackPageView(ctx, &analytics.PageView{ActionName: "Home"})
	require.NoError(t, err)
	parent.End()

	ended := p.spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), ended[0].SpanContext().TraceID())
}

func TestTracker_WithMiddleware(t *testing.T) {
	t.Parallel()

	p := newTestProviders(t)
	tracker := MustNew(p.opts...)

	r := router.MustNew()
	r.GET("/orders/:OrderId", analytics.New(tracker, analytics.WithoutLogging()), func(c *router.Context) {
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/9", nil))

	ended := p.spans.Ended()
	require.Len(t, ended, 1)
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, "GET /orders/:OrderId", attrs["analytics.action"])
	assert.Equal(t, "OrderId", attrs["analytics.custom_variable.1.name"])
	assert.Equal(t, "9", attrs["analytics.custom_variable.1.value"])
	assert.Equal(t, "OrderNamePlaceholder", attrs["analytics.custom_variable.2.name"])
}

func TestSpanAttributes_IgnoresInvalidPositions(t *testing.T) {
	t.Parallel()

	attrs := attrMap(spanAttributes("", &analytics.PageView{
		Variables: []analytics.Variable{{Position: 0, Name: "bad"}, {Position: 6, Name: "bad"}},
	}))

	for key := range attrs {
		assert.NotContains(t, key, customVariablePrefix)
	}
}
