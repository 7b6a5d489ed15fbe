// Package resilience keeps misbehaving upstreams from dragging the
// gateway down with them. Each upstream gets a circuit breaker that
// trips after consecutive transport failures and probes for recovery
// once a cool-down has passed.
package resilience

import (
	"sync"
	"time"

	"github.com/thushan/ladle/internal/core/domain"
)

// Breaker is the per-upstream state machine. Closed admits everything,
// open rejects everything until the recovery timeout elapses, half-open
// admits calls as probes and settles on their outcome.
type Breaker struct {
	lastFailure time.Time
	openedAt    time.Time
	onChange    func(domain.BreakerTransition)
	name        string
	state       domain.BreakerState
	recovery    time.Duration
	failures    int
	threshold   int
	mu          sync.Mutex
}

func NewBreaker(name string, threshold int, recovery time.Duration, onChange func(domain.BreakerTransition)) *Breaker {
	if threshold <= 0 {
		threshold = domain.DefaultFailureThreshold
	}
	if recovery <= 0 {
		recovery = domain.DefaultRecoveryTimeout
	}
	return &Breaker{
		name:      name,
		state:     domain.BreakerClosed,
		threshold: threshold,
		recovery:  recovery,
		onChange:  onChange,
	}
}

// CanExecute reports whether a call may proceed right now. An open
// circuit whose recovery timeout has elapsed shifts to half-open and
// admits the call as a probe; an open circuit still cooling down
// rejects with the remaining wait attached.
func (b *Breaker) CanExecute() error {
	b.mu.Lock()

	if b.state != domain.BreakerOpen {
		b.mu.Unlock()
		return nil
	}

	remaining := b.recovery - time.Since(b.openedAt)
	if remaining > 0 {
		name := b.name
		b.mu.Unlock()
		return &domain.BreakerOpenError{Server: name, RetryAfter: remaining}
	}

	t := b.shift(domain.BreakerHalfOpen)
	b.mu.Unlock()
	b.notify(t)
	return nil
}

// RecordSuccess clears the consecutive failure count. A success while
// half-open closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	var t *domain.BreakerTransition
	if b.state == domain.BreakerHalfOpen {
		t = b.shift(domain.BreakerClosed)
	}
	b.mu.Unlock()
	b.notify(t)
}

// RecordFailure counts one transport failure. Hitting the threshold
// opens the circuit; any failure while half-open reopens it with a
// fresh cool-down.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	now := time.Now()
	b.failures++
	b.lastFailure = now

	var t *domain.BreakerTransition
	switch {
	case b.state == domain.BreakerHalfOpen:
		b.openedAt = now
		t = b.shift(domain.BreakerOpen)
	case b.state == domain.BreakerClosed && b.failures >= b.threshold:
		b.openedAt = now
		t = b.shift(domain.BreakerOpen)
	}
	b.mu.Unlock()
	b.notify(t)
}

// Reset forces the circuit closed and zeroes all counters, regardless
// of current state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.lastFailure = time.Time{}
	b.openedAt = time.Time{}
	var t *domain.BreakerTransition
	if b.state != domain.BreakerClosed {
		t = b.shift(domain.BreakerClosed)
	}
	b.mu.Unlock()
	b.notify(t)
}

func (b *Breaker) State() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Status() domain.BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := domain.BreakerStatus{
		Name:     b.name,
		State:    b.state,
		Failures: b.failures,
	}
	if !b.lastFailure.IsZero() {
		lf := b.lastFailure
		status.LastFailure = &lf
	}
	if b.state == domain.BreakerOpen {
		oa := b.openedAt
		status.OpenedAt = &oa
		if remaining := b.recovery - time.Since(b.openedAt); remaining > 0 {
			status.RetryAfterMs = remaining.Milliseconds()
		}
	}
	return status
}

// shift changes state under the lock and returns the transition for
// publication once the lock is released.
func (b *Breaker) shift(to domain.BreakerState) *domain.BreakerTransition {
	from := b.state
	b.state = to
	return &domain.BreakerTransition{Name: b.name, From: from, To: to, At: time.Now()}
}

func (b *Breaker) notify(t *domain.BreakerTransition) {
	if t != nil && b.onChange != nil {
		b.onChange(*t)
	}
}
