package app

import (
	"net/http"

	"github.com/thushan/ladle/internal/logger"
)

// RequestSizeLimiter caps request bodies before they reach a handler.
// MCP payloads are small; anything past the limit is a misbehaving
// client, not a bigger tool call.
type RequestSizeLimiter struct {
	log logger.StyledLogger
	max int64
}

func NewRequestSizeLimiter(maxBodySize int64, log logger.StyledLogger) *RequestSizeLimiter {
	return &RequestSizeLimiter{log: log, max: maxBodySize}
}

func (rsl *RequestSizeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rsl.max > 0 {
			if r.ContentLength > rsl.max {
				rsl.reject(w, r)
				return
			}
			// MaxBytesReader backstops a lying or absent Content-Length.
			r.Body = http.MaxBytesReader(w, r.Body, rsl.max)
		}

		next.ServeHTTP(w, r)
	})
}

func (rsl *RequestSizeLimiter) reject(w http.ResponseWriter, r *http.Request) {
	rsl.log.Warn("Request rejected: body over limit",
		"limit", rsl.max,
		"content_length", r.ContentLength,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
}
