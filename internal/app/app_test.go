package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/thushan/ladle/internal/adapter/cache"
	"github.com/thushan/ladle/internal/adapter/enhance"
	"github.com/thushan/ladle/internal/adapter/inference"
	"github.com/thushan/ladle/internal/adapter/registry"
	"github.com/thushan/ladle/internal/adapter/resilience"
	"github.com/thushan/ladle/internal/adapter/sse"
	"github.com/thushan/ladle/internal/adapter/stats"
	"github.com/thushan/ladle/internal/adapter/vector"
	"github.com/thushan/ladle/internal/app/middleware"
	"github.com/thushan/ladle/internal/config"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/internal/router"
	"github.com/thushan/ladle/pkg/eventbus"
)

func testLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            40114,
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: time.Second,
			MaxBodySize:     1 << 20,
		},
		Inference: config.InferenceConfig{
			URL:             "http://127.0.0.1:1",
			GenerateTimeout: 2 * time.Second,
			EmbedTimeout:    time.Second,
			EmbedModel:      "nomic-embed-text",
		},
		Cache:      config.CacheConfig{L1Capacity: 32},
		Breaker:    config.BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute},
		Upstreams:  config.UpstreamsConfig{ShutdownTimeout: time.Second},
		SSE:        config.SSEConfig{IdleTimeout: time.Minute, KeepaliveInterval: time.Minute, MaxSessions: 4},
		RequestLog: config.RequestLogConfig{Capacity: 16},
	}
}

// newTestApplication assembles an Application the same way New does, minus
// config loading, so handler tests run against real components.
func newTestApplication(t *testing.T, cfg *config.Config, servers []domain.ServerConfig, rules *domain.EnhanceRules) *Application {
	t.Helper()

	log := testLogger()
	bus := eventbus.New[domain.BreakerTransition]()
	breakers := resilience.NewRegistry(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout, bus)

	inferenceClient := inference.NewClient(inference.Config{
		BaseURL:         cfg.Inference.URL,
		GenerateTimeout: cfg.Inference.GenerateTimeout,
		EmbedTimeout:    cfg.Inference.EmbedTimeout,
	}, log)

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
		t.Fatalf("NewPromptCache: %v", err)
	}

	upstreams, err := registry.New(servers, breakers, cfg.Upstreams.ShutdownTimeout, log)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	a := &Application{
		StartTime: time.Now(),
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
	a.setConfig(cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.hub.Shutdown(ctx)
		bus.Shutdown()
	})

	return a
}

// newGatewayHandler wires routes and middleware exactly as startWebServer
// does, returning the handler without binding a listener.
func newGatewayHandler(a *Application) http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes()
	a.routes.WireUp(mux)

	sizeLimiter := NewRequestSizeLimiter(a.getConfig().Server.MaxBodySize, a.logger)
	return middleware.RequestLogging(a.logger)(
		middleware.RequestRecorder(a.collector)(
			sizeLimiter.Middleware(mux)))
}
