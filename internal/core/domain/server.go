package domain

import (
	"fmt"
	"net/url"
	"time"
)

// Transport kinds for upstream MCP servers.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const (
	DefaultCallTimeoutMs = 30000
	DefaultMaxRestarts   = 3
)

// ServerConfig describes one upstream MCP server. Descriptors are immutable
// after startup; the registry owns one adapter and one breaker per name.
type ServerConfig struct {
	Name           string            `json:"-"`
	Transport      string            `json:"transport"`
	Command        []string          `json:"command,omitempty"`
	URL            string            `json:"url,omitempty"`
	HealthEndpoint string            `json:"health_endpoint,omitempty"`
	TimeoutMs      int               `json:"timeout_ms,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	MaxRestarts    int               `json:"max_restarts,omitempty"`
}

// CallTimeout returns the per-call deadline for this upstream.
func (sc *ServerConfig) CallTimeout() time.Duration {
	if sc.TimeoutMs <= 0 {
		return DefaultCallTimeoutMs * time.Millisecond
	}
	return time.Duration(sc.TimeoutMs) * time.Millisecond
}

// RestartLimit returns the stdio respawn cap for this upstream.
func (sc *ServerConfig) RestartLimit() int {
	if sc.MaxRestarts <= 0 {
		return DefaultMaxRestarts
	}
	return sc.MaxRestarts
}

func (sc *ServerConfig) Validate() error {
	switch sc.Transport {
	case TransportStdio:
		if len(sc.Command) == 0 {
			return &ConfigValidationError{Field: "command", Value: sc.Command, Reason: "stdio transport requires a command"}
		}
	case TransportHTTP:
		if sc.URL == "" {
			return &ConfigValidationError{Field: "url", Value: sc.URL, Reason: "http transport requires a url"}
		}
		parsed, err := url.Parse(sc.URL)
		if err != nil || !parsed.IsAbs() {
			return &ConfigValidationError{Field: "url", Value: sc.URL, Reason: "must be an absolute URL"}
		}
	default:
		return &ConfigValidationError{Field: "transport", Value: sc.Transport, Reason: fmt.Sprintf("must be %q or %q", TransportStdio, TransportHTTP)}
	}
	return nil
}

// ServerHealth is one upstream's probe result for the health endpoints.
type ServerHealth struct {
	Server    string `json:"server"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

const (
	HealthStatusUp   = "up"
	HealthStatusDown = "down"
)

// TransportStats is a point-in-time view of one adapter.
type TransportStats struct {
	LastCall      *time.Time `json:"last_call,omitempty"`
	Kind          string     `json:"kind"`
	LastError     string     `json:"last_error,omitempty"`
	PID           int        `json:"pid,omitempty"`
	RestartCount  int        `json:"restart_count,omitempty"`
	LastLatencyMs int64      `json:"last_latency_ms,omitempty"`
	Running       bool       `json:"running"`
}
