package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/internal/util"
	"github.com/thushan/ladle/pkg/format"
)

type contextKey string

// Keys for the values this middleware plants in the request context.
const (
	RequestIDKey contextKey = "request_id"
	LoggerKey    contextKey = "logger"
)

// gatewaySegments are the first path segments ladle serves itself.
// Anything else is a JSON-RPC dispatch to a named upstream.
var gatewaySegments = map[string]struct{}{
	"":        {},
	"health":  {},
	"enhance": {},
	"sse":     {},
	"stats":   {},
	"tools":   {},
	"actions": {},
	"version": {},
}

// IsDispatchRequest reports whether the path targets an upstream server.
// Dispatches come through at debug here; the dispatch handler writes its
// own INFO lines and double logging helps nobody.
func IsDispatchRequest(path string) bool {
	seg := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	_, own := gatewaySegments[seg]
	return !own
}

// responseWriter captures the status and bytes written for the access line.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

func (rw *responseWriter) WriteHeader(s int) {
	rw.status = s
	rw.ResponseWriter.WriteHeader(s)
}

// Flush passes through to the underlying writer. The SSE stream depends
// on this; without it events sit in the buffer until the session ends.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// GetLogger returns the request-scoped logger, or the default one when
// the middleware never ran.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// GetRequestID returns the request ID planted by RequestLogging, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogging assigns every request an ID, plants an ID-scoped logger
// in the context and writes start/finish lines around the inner handler.
// Client-supplied X-Request-ID values are kept and echoed back.
func RequestLogging(styledLogger logger.StyledLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(constants.HeaderXRequestID)
			if requestID == "" {
				requestID = util.GenerateRequestID()
			}

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			baseLogger := styledLogger.GetUnderlying().With(constants.ContextRequestIdKey, requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, baseLogger)

			w.Header().Set(constants.HeaderXRequestID, requestID)

			logLine := baseLogger.Info
			if IsDispatchRequest(r.URL.Path) {
				logLine = baseLogger.Debug
			}

			logLine("Request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"request_bytes", requestSize)

			wrapped := &responseWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)
			logLine("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", duration.Milliseconds(),
				"request_bytes", requestSize,
				"response_bytes", wrapped.size,
				"size_flow", fmt.Sprintf("%s -> %s",
					format.Bytes(util.SafeUint64(requestSize)),
					format.Bytes(util.SafeUint64(wrapped.size))))
		})
	}
}
