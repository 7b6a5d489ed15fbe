package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thushan/ladle/internal/adapter/cache"
	"github.com/thushan/ladle/internal/adapter/enhance"
	"github.com/thushan/ladle/internal/adapter/inference"
	"github.com/thushan/ladle/internal/adapter/registry"
	"github.com/thushan/ladle/internal/adapter/resilience"
	"github.com/thushan/ladle/internal/adapter/sse"
	"github.com/thushan/ladle/internal/adapter/stats"
	"github.com/thushan/ladle/internal/adapter/vector"
	"github.com/thushan/ladle/internal/config"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/internal/router"
	"github.com/thushan/ladle/pkg/eventbus"
	"github.com/thushan/ladle/pkg/format"
)

// Application represents the ladle gateway
type Application struct {
	StartTime time.Time

	configMu sync.RWMutex
	config   *config.Config
	server   *http.Server
	logger   logger.StyledLogger
	routes   *router.RouteRegistry

	bus       *eventbus.Bus[domain.BreakerTransition]
	breakers  *resilience.Registry
	inference *inference.Client
	vectors   *vector.QdrantClient
	cache     *cache.PromptCache
	enhancer  *enhance.Enhancer
	registry  *registry.Registry
	hub       *sse.Hub
	collector *stats.Collector

	busUnsub func()
	errCh    chan error
}

// New creates a new application instance
func New(startTime time.Time, log logger.StyledLogger) (*Application, error) {

	/**
	 * Config changes on disk are logged but not applied live; upstream
	 * processes and open SSE sessions make a hot swap more dangerous
	 * than a restart.
	 **/
	cfg, err := config.Load(func(e fsnotify.Event) {
		log.Warn("Configuration file changed, restart to apply", "file", e.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	servers, err := config.LoadServers(cfg.Upstreams.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load upstream servers: %w", err)
	}

	rules, err := config.LoadRules(cfg.Enhance.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load enhancement rules: %w", err)
	}

	bus := eventbus.New[domain.BreakerTransition]()
	breakers := resilience.NewRegistry(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout, bus)

	inferenceClient := inference.NewClient(inference.Config{
		BaseURL:         cfg.Inference.URL,
		GenerateTimeout: cfg.Inference.GenerateTimeout,
		EmbedTimeout:    cfg.Inference.EmbedTimeout,
	}, log)

	// The vector client starts unavailable; EnsureCollection during Start
	// switches L2 on when the store answers.
	vectors := vector.NewQdrantClient(vector.Config{
		BaseURL:    cfg.Vector.URL,
		Collection: cfg.Vector.Collection,
		Dimension:  cfg.Vector.Dimension,
		Timeout:    cfg.Vector.Timeout,
	}, log)

	promptCache, err := cache.NewPromptCache(cache.Config{
		EmbedModel:          cfg.Inference.EmbedModel,
		L1Capacity:          cfg.Cache.L1Capacity,
		SimilarityThreshold: cfg.Vector.Similarity,
	}, inferenceClient, vectors, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt cache: %w", err)
	}

	upstreams, err := registry.New(servers, breakers, cfg.Upstreams.ShutdownTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream registry: %w", err)
	}

	app := &Application{
		StartTime: startTime,
		logger:    log,
		routes:    router.NewRouteRegistry(log),
		bus:       bus,
		breakers:  breakers,
		inference: inferenceClient,
		vectors:   vectors,
		cache:     promptCache,
		enhancer:  enhance.NewEnhancer(rules, promptCache, inferenceClient, log),
		registry:  upstreams,
		hub: sse.NewHub(sse.Config{
			IdleTimeout:       cfg.SSE.IdleTimeout,
			KeepaliveInterval: cfg.SSE.KeepaliveInterval,
			MaxSessions:       cfg.SSE.MaxSessions,
		}, upstreams, log),
		collector: stats.NewCollector(cfg.RequestLog.Capacity),
		errCh:     make(chan error, 1),
	}
	app.setConfig(cfg)

	// WriteTimeout stays zero: the SSE stream is a long-lived response
	// and must not be cut by the server. Handlers bound their own work.
	app.server = &http.Server{
		Addr:        cfg.Server.GetAddress(),
		ReadTimeout: cfg.Server.ReadTimeout,
		Handler:     nil, // Will be set in Start()
	}

	return app, nil
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {

	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	a.watchBreakerTransitions(ctx)
	a.registry.Start(ctx)
	a.logUpstreamHealth(ctx)
	a.probeInference(ctx)
	a.probeVectorStore(ctx)
	a.startWebServer()

	a.logger.Info("Ladle started", "bind", a.server.Addr)
	return nil
}

// Stop stops the application
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.getConfig().Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then tell streaming clients,
	// then take the upstreams down.
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", "error", err)
	}

	a.hub.Shutdown(shutdownCtx)

	if err := a.registry.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop upstream servers", "error", err)
	}

	if a.busUnsub != nil {
		a.busUnsub()
	}
	a.bus.Shutdown()

	return nil
}

// watchBreakerTransitions logs every breaker state change published on
// the event bus until the application context ends.
func (a *Application) watchBreakerTransitions(ctx context.Context) {
	events, unsub := a.bus.Subscribe(ctx)
	a.busUnsub = unsub

	go func() {
		for t := range events {
			a.logger.InfoBreakerTransition(t)
		}
	}()
}

// logUpstreamHealth probes every upstream once at startup so a dead
// server is visible before the first request hits it.
func (a *Application) logUpstreamHealth(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	healths := a.registry.HealthAll(probeCtx)
	if len(healths) == 0 {
		a.logger.Warn("No upstream servers configured")
		return
	}

	up := 0
	for _, h := range healths {
		a.logger.InfoHealthStatus("Upstream", h.Server, h.Status, "latency", format.Latency(h.LatencyMs))
		if h.Status == domain.HealthStatusUp {
			up++
		}
	}
	a.logger.Info("Upstream health", "up", format.UpCount(up, len(healths)))
}

// probeInference checks the LM service once at startup. Failure is not
// fatal, enhancement degrades to passthrough until the service shows up.
func (a *Application) probeInference(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ver, err := a.inference.Version(probeCtx)
	if err != nil {
		a.logger.Warn("Inference service unreachable, enhancement will pass prompts through",
			"url", a.getConfig().Inference.URL, "error", err)
		return
	}
	a.logger.Info("Inference service ready", "url", a.getConfig().Inference.URL, "version", ver)
}

// probeVectorStore brings the L2 cache tier up when the vector store is
// reachable. Failure is not fatal, the cache runs L1-only.
func (a *Application) probeVectorStore(ctx context.Context) {
	cfg := a.getConfig()
	if !cfg.Vector.Enabled() {
		a.logger.Info("Vector store disabled, prompt cache runs L1-only")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.vectors.EnsureCollection(probeCtx); err != nil {
		a.logger.Warn("Vector store unreachable, prompt cache runs L1-only",
			"url", cfg.Vector.URL, "error", err)
		return
	}
	a.logger.Info("Vector store ready", "url", cfg.Vector.URL, "collection", cfg.Vector.Collection)
}
