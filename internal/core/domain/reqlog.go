package domain

import "time"

const DefaultRequestLogCapacity = 50

// RequestLogEntry is one row of the in-memory request ring. The ring is the
// only request history the gateway keeps; nothing is persisted.
type RequestLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Client    string    `json:"client,omitempty"`
	Status    int       `json:"status"`
	LatencyMs int64     `json:"latency_ms"`
}
