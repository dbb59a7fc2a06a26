package middleware

import (
	"net/http"
	"strconv"

	"github.com/dandantas/pulse/internal/metrics"
)

// Metrics counts requests by matched route pattern.
// It must wrap the ServeMux directly so the pattern set by the mux is visible.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.IncreaseHTTPRequests(strconv.Itoa(rw.statusCode), r.Method, route)
	})
}
