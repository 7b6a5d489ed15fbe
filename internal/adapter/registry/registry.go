// Package registry owns the upstream MCP servers: one transport adapter
// and one circuit breaker per configured name. Every call is gated by
// the breaker first, so a tripped upstream never sees traffic until its
// cool-down has passed.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/thushan/ladle/internal/adapter/resilience"
	"github.com/thushan/ladle/internal/adapter/transport"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/core/ports"
	"github.com/thushan/ladle/internal/logger"
)

const DefaultShutdownTimeout = 10 * time.Second

// Registry routes JSON-RPC requests to upstreams by name. The maps are
// built once at startup and never mutated, so lookups need no locking.
type Registry struct {
	adapters map[string]ports.Transport
	configs  map[string]domain.ServerConfig
	breakers *resilience.Registry
	logger   logger.StyledLogger
	names    []string

	shutdownTimeout time.Duration
}

func New(configs []domain.ServerConfig, breakers *resilience.Registry, shutdownTimeout time.Duration, log logger.StyledLogger) (*Registry, error) {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	r := &Registry{
		adapters:        make(map[string]ports.Transport, len(configs)),
		configs:         make(map[string]domain.ServerConfig, len(configs)),
		breakers:        breakers,
		logger:          log,
		shutdownTimeout: shutdownTimeout,
	}

	for _, cfg := range configs {
		adapter, err := transport.New(cfg, log.With("server", cfg.Name))
		if err != nil {
			return nil, err
		}
		r.adapters[cfg.Name] = adapter
		r.configs[cfg.Name] = cfg
		r.names = append(r.names, cfg.Name)
	}
	sort.Strings(r.names)

	return r, nil
}

// Start brings up every stdio upstream eagerly so the first caller does
// not pay the spawn cost. A failed spawn is logged and tallied against
// the breaker; the gateway still serves the rest.
func (r *Registry) Start(ctx context.Context) {
	for _, name := range r.names {
		adapter := r.adapters[name]
		if adapter.Kind() != domain.TransportStdio {
			continue
		}
		if err := adapter.Start(ctx); err != nil {
			r.logger.ErrorWithServer("failed to start stdio server", name, "error", err)
			r.breakers.Get(name).RecordFailure()
			continue
		}
	}
	r.logger.InfoWithCount("Registered upstream servers", len(r.names))
}

// Call routes one request to the named upstream through its breaker.
// Transport failures are tallied; a JSON-RPC error payload from a
// healthy upstream is a success and passes through verbatim.
func (r *Registry) Call(ctx context.Context, server string, req domain.Request) (domain.Response, error) {
	adapter, ok := r.adapters[server]
	if !ok {
		return domain.Response{}, &domain.UnknownServerError{Server: server, Available: r.Servers()}
	}

	breaker := r.breakers.Get(server)
	if err := breaker.CanExecute(); err != nil {
		return domain.Response{}, err
	}

	resp, err := adapter.Call(ctx, req)
	if err != nil {
		// A client hanging up mid-call says nothing about upstream
		// health; only genuine transport faults tally.
		if !errors.Is(err, context.Canceled) {
			breaker.RecordFailure()
		}
		return domain.Response{}, err
	}

	breaker.RecordSuccess()
	return resp, nil
}

// Servers lists the configured upstream names in sorted order.
func (r *Registry) Servers() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Health probes one upstream and reports its status with the probe
// latency. Unknown names surface as UnknownServerError.
func (r *Registry) Health(ctx context.Context, server string) (domain.ServerHealth, error) {
	adapter, ok := r.adapters[server]
	if !ok {
		return domain.ServerHealth{}, &domain.UnknownServerError{Server: server, Available: r.Servers()}
	}

	started := time.Now()
	healthy := adapter.Healthy(ctx)

	health := domain.ServerHealth{
		Server:    server,
		Status:    domain.HealthStatusDown,
		LatencyMs: time.Since(started).Milliseconds(),
	}
	if healthy {
		health.Status = domain.HealthStatusUp
	}
	return health, nil
}

// HealthAll probes every upstream in parallel. Results come back in
// name order regardless of which probe answered first.
func (r *Registry) HealthAll(ctx context.Context) []domain.ServerHealth {
	results := make([]domain.ServerHealth, len(r.names))

	var wg sync.WaitGroup
	for i, name := range r.names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			health, _ := r.Health(ctx, name)
			results[i] = health
		}(i, name)
	}
	wg.Wait()

	return results
}

// Stats reports every adapter's transport view, keyed by server name.
func (r *Registry) Stats() map[string]domain.TransportStats {
	stats := make(map[string]domain.TransportStats, len(r.names))
	for name, adapter := range r.adapters {
		stats[name] = adapter.Stats()
	}
	return stats
}

// Restart explicitly restarts one upstream, clearing a spent respawn
// budget, and closes its breaker so traffic flows again immediately.
func (r *Registry) Restart(ctx context.Context, server string) error {
	adapter, ok := r.adapters[server]
	if !ok {
		return &domain.UnknownServerError{Server: server, Available: r.Servers()}
	}

	if err := adapter.Restart(ctx); err != nil {
		return err
	}
	r.breakers.Reset(server)
	r.logger.InfoWithServer("restarted upstream", server)
	return nil
}

// Shutdown stops every adapter in parallel under one bounded deadline.
// Adapters still busy when the deadline hits are abandoned; their kill
// timers finish on their own.
func (r *Registry) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.shutdownTimeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for name, adapter := range r.adapters {
		wg.Add(1)
		go func(name string, adapter ports.Transport) {
			defer wg.Done()
			if err := adapter.Stop(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				r.logger.WarnWithServer("error stopping upstream", name, "error", err)
			}
		}(name, adapter)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("upstream shutdown deadline hit, abandoning stragglers")
		return ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}
