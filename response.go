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
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"

	"rivaas.dev/router"
)

// statusCoder is implemented by response writers that remember the status
// they sent. The router's own writer and other middleware wrappers qualify.
type statusCoder interface {
	StatusCode() int
}

// ResponseStatus returns the status written for the current request, or 200
// when the response writer does not expose it.
func ResponseStatus(c *router.Context) int {
	if sc, ok := c.Response.(statusCoder); ok {
		return sc.StatusCode()
	}

	return http.StatusOK
}

// captureStatus makes sure the status of the response can be read after the
// handler chain has run.
func captureStatus(c *router.Context) statusCoder {
	if existing, ok := c.Response.(statusCoder); ok {
		return existing
	}
	wrapped := &statusWriter{ResponseWriter: c.Response}
	c.Response = wrapped

	return wrapped
}

// statusWriter records the response status and keeps the optional
// interfaces of the wrapped writer reachable.
type statusWriter struct {
	http.ResponseWriter
	status int
}

var (
	_ http.ResponseWriter = (*statusWriter)(nil)
	_ http.Flusher        = (*statusWriter)(nil)
	_ http.Hijacker       = (*statusWriter)(nil)
	_ io.ReaderFrom       = (*statusWriter)(nil)
)

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}

	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) StatusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

// Flush implements http.Flusher
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}

	return nil, nil, errors.New("hijacker not supported")
}

// ReadFrom implements io.ReaderFrom
func (w *statusWriter) ReadFrom(r io.Reader) (int64, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(r)
	}

	return io.Copy(w.ResponseWriter, r)
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
