// Package transport holds the upstream adapters: one flavour speaks
// JSON-RPC over HTTP POST, the other over newline-delimited JSON on a
// subprocess's stdin/stdout. Both expose the same Call surface and
// leave request ids untouched end to end.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/core/ports"
	"github.com/thushan/ladle/internal/logger"
)

// New builds the adapter matching the descriptor's transport kind.
func New(cfg domain.ServerConfig, log logger.StyledLogger) (ports.Transport, error) {
	switch cfg.Transport {
	case domain.TransportHTTP:
		return NewHTTPTransport(cfg, log), nil
	case domain.TransportStdio:
		return NewStdioTransport(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}
}

// callTracker remembers the outcome of the most recent call so health
// and stats surfaces can report without touching the wire.
type callTracker struct {
	mu          sync.Mutex
	lastCall    time.Time
	lastSuccess time.Time
	lastError   string
	lastLatency time.Duration
}

func (t *callTracker) success(started time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.lastCall = now
	t.lastSuccess = now
	t.lastError = ""
	t.lastLatency = now.Sub(started)
}

func (t *callTracker) failure(started time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.lastCall = now
	t.lastError = err.Error()
	t.lastLatency = now.Sub(started)
}

// lastSuccessTime is zero until the first successful call.
func (t *callTracker) lastSuccessTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSuccess
}

// lastKnownGood reports true when the adapter has no failure more
// recent than its last success. A never-used adapter gets the benefit
// of the doubt.
func (t *callTracker) lastKnownGood() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastCall.IsZero() {
		return true
	}
	return t.lastError == ""
}

func (t *callTracker) fill(stats *domain.TransportStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastCall.IsZero() {
		lc := t.lastCall
		stats.LastCall = &lc
		stats.LastLatencyMs = t.lastLatency.Milliseconds()
	}
	stats.LastError = t.lastError
}

// isTimeout classifies transport errors so timeouts surface with their
// own JSON-RPC code.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// joinHealthURL resolves a health endpoint against the upstream URL.
// Absolute endpoints are used as-is; paths are appended to the base.
func joinHealthURL(base, endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
