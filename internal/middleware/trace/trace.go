// Package trace logs the start and end of every HTTP request.
package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"bilancio/internal/log"
)

// Middleware handles request tracing and logging. It expects chi's
// RequestID middleware to run first.
type Middleware struct {
	extractIP func(*http.Request) string
	total     atomic.Int64
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

// Handler returns HTTP middleware for request tracing.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	withID := log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	})
	return withID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		log.FromContext(ctx).DebugContext(ctx, "HTTP request started",
			log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
				WithClientIP(clientIP).
				ToSlice()...)
		m.total.Add(1)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.LogHTTPEnd(ctx, r, status, time.Since(start).Milliseconds(), clientIP)
	}))
}

// TotalRequests returns the number of requests seen so far.
func (m *Middleware) TotalRequests() int64 {
	return m.total.Load()
}
