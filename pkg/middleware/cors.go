package middleware

import (
	"net/http"
	"strconv"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials bool
	MaxAge           int
}

// CORS sets the configured CORS headers and answers preflight requests
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if config.AllowedOrigins != "" {
				h.Set("Access-Control-Allow-Origin", config.AllowedOrigins)
			}
			if config.AllowedMethods != "" {
				h.Set("Access-Control-Allow-Methods", config.AllowedMethods)
			}
			if config.AllowedHeaders != "" {
				h.Set("Access-Control-Allow-Headers", config.AllowedHeaders)
			}
			h.Add("Access-Control-Expose-Headers", HeaderCorrelationID)
			if config.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
