package domain

import "time"

// BreakerState is the circuit state guarding one upstream.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	DefaultFailureThreshold = 3
	DefaultRecoveryTimeout  = 30 * time.Second
)

// BreakerStatus is a point-in-time snapshot for the health and stats
// endpoints. RetryAfterMs is populated only while the breaker is open.
type BreakerStatus struct {
	Name         string       `json:"name"`
	State        BreakerState `json:"state"`
	Failures     int          `json:"failures"`
	LastFailure  *time.Time   `json:"last_failure,omitempty"`
	OpenedAt     *time.Time   `json:"opened_at,omitempty"`
	RetryAfterMs int64        `json:"retry_after_ms,omitempty"`
}

// BreakerTransition is published on the event bus whenever a breaker
// changes state.
type BreakerTransition struct {
	Name string
	From BreakerState
	To   BreakerState
	At   time.Time
}
