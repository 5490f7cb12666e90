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

package analyticstest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/analytics"
)

func TestRecorder_StoresCopies(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(t)
	pv := &analytics.PageView{
		ID:        "pv-1",
		Variables: []analytics.Variable{{Position: 1, Name: "A", Value: "1"}},
	}

	res, err := rec.TrackPageView(context.Background(), pv)
	require.NoError(t, err)
	assert.Equal(t, analytics.Result{Success: true, ID: "pv-1"}, res)

	pv.Variables[0].Value = "changed"

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "1", last.Variables[0].Value)
	assert.Equal(t, 1, rec.Len())
}

func TestRecorder_FailWith(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(t)
	boom := errors.New("backend down")
	rec.FailWith(boom)

	res, err := rec.TrackPageView(context.Background(), &analytics.PageView{ID: "x"})
	require.ErrorIs(t, err, boom)
	assert.False(t, res.Success)
	assert.Equal(t, 1, rec.Len())

	rec.FailWith(nil)
	_, err = rec.TrackPageView(context.Background(), &analytics.PageView{ID: "y"})
	assert.NoError(t, err)
}

func TestRecorder_Reset(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(t)
	rec.FailWith(errors.New("x"))
	_, _ = rec.TrackPageView(context.Background(), &analytics.PageView{}) //nolint:errcheck // error is expected
	rec.Reset()

	assert.Equal(t, 0, rec.Len())
	_, ok := rec.Last()
	assert.False(t, ok)
	_, err := rec.TrackPageView(context.Background(), &analytics.PageView{})
	assert.NoError(t, err)
}

func TestRecorder_WaitFor(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(t)
	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			_, _ = rec.TrackPageView(context.Background(), &analytics.PageView{}) //nolint:errcheck // always succeeds
		})
	}

	views, err := rec.WaitFor(3, time.Second)
	require.NoError(t, err)
	assert.Len(t, views, 3)
	wg.Wait()
}

func TestRecorder_WaitForTimeout(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(t)

	_, err := rec.WaitFor(1, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRecorder_WaitForWakesEveryWaiter(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(t)
	start := time.Now()
	errs := make(chan error, 3)
	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			_, err := rec.WaitFor(1, 5*time.Second)
			errs <- err
		})
	}

	time.Sleep(20 * time.Millisecond)
	_, _ = rec.TrackPageView(context.Background(), &analytics.PageView{}) //nolint:errcheck // always succeeds
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRecorder_ZeroValue(t *testing.T) {
	t.Parallel()

	var rec Recorder
	_, err := rec.TrackPageView(context.Background(), &analytics.PageView{ID: "a"})
	require.NoError(t, err)

	views, err := rec.WaitFor(1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", views[0].ID)
}
