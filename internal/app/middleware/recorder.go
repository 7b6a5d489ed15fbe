package middleware

import (
	"net/http"
	"time"

	"github.com/thushan/ladle/internal/adapter/stats"
	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
)

// RequestRecorder feeds every completed request into the in-memory ring
// the /stats endpoint serves. The SSE stream is recorded too, but only
// once its long-lived response finally ends.
func RequestRecorder(collector *stats.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			client := r.Header.Get(constants.HeaderXClientName)
			if client == "" {
				client = "unknown"
			}

			wrapped := &responseWriter{ResponseWriter: w, status: 200}

			next.ServeHTTP(wrapped, r)

			collector.Record(domain.RequestLogEntry{
				Timestamp: start.UTC(),
				Method:    r.Method,
				Path:      r.URL.Path,
				Client:    client,
				Status:    wrapped.status,
				LatencyMs: time.Since(start).Milliseconds(),
			})
		})
	}
}
