package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const processTimeHeader = "X-Process-Time"

// ProcessTime reports the handler latency in seconds in the X-Process-Time header.
func ProcessTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&timedWriter{ResponseWriter: w, started: time.Now()}, r)
	})
}

type timedWriter struct {
	http.ResponseWriter
	started     time.Time
	wroteHeader bool
}

func (tw *timedWriter) WriteHeader(statusCode int) {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.Header().Set(processTimeHeader, strconv.FormatFloat(time.Since(tw.started).Seconds(), 'f', 6, 64))
	}
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *timedWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

type requestObserver interface {
	ObserveRequest(method, route string, status int, seconds float64)
}

// Metrics records request counts and latency labelled by the matched chi route pattern.
func Metrics(observer requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			observer.ObserveRequest(r.Method, route, wrapped.status, time.Since(started).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
		sw.status = statusCode
	}
	sw.ResponseWriter.WriteHeader(statusCode)
}
