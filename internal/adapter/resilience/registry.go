package resilience

import (
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/pkg/eventbus"
)

// Registry hands out one breaker per upstream, created lazily on first
// use so upstreams added at runtime are covered without registration.
// Transitions are published on the event bus rather than logged here.
type Registry struct {
	breakers  *xsync.Map[string, *Breaker]
	bus       *eventbus.Bus[domain.BreakerTransition]
	recovery  time.Duration
	threshold int
}

func NewRegistry(threshold int, recovery time.Duration, bus *eventbus.Bus[domain.BreakerTransition]) *Registry {
	return &Registry{
		breakers:  xsync.NewMap[string, *Breaker](),
		bus:       bus,
		threshold: threshold,
		recovery:  recovery,
	}
}

func (r *Registry) Get(name string) *Breaker {
	breaker, _ := r.breakers.LoadOrCompute(name, func() (*Breaker, bool) {
		return NewBreaker(name, r.threshold, r.recovery, r.publish), false
	})
	return breaker
}

// AllStatus reports every breaker created so far, sorted by name.
func (r *Registry) AllStatus() []domain.BreakerStatus {
	statuses := make([]domain.BreakerStatus, 0, r.breakers.Size())
	r.breakers.Range(func(_ string, b *Breaker) bool {
		statuses = append(statuses, b.Status())
		return true
	})
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// ResetAll forces every breaker closed and reports how many it touched.
func (r *Registry) ResetAll() int {
	reset := 0
	r.breakers.Range(func(_ string, b *Breaker) bool {
		b.Reset()
		reset++
		return true
	})
	return reset
}

func (r *Registry) Reset(name string) bool {
	if b, ok := r.breakers.Load(name); ok {
		b.Reset()
		return true
	}
	return false
}

func (r *Registry) publish(t domain.BreakerTransition) {
	if r.bus != nil {
		r.bus.Publish(t)
	}
}
