package ports

import (
	"context"

	"github.com/thushan/ladle/internal/core/domain"
)

// Transport speaks JSON-RPC 2.0 to exactly one upstream. Implementations
// must never rewrite the request id. Restart is the explicit recovery
// path: it clears any exhausted respawn budget and brings the upstream
// back up where the transport supports that.
type Transport interface {
	Call(ctx context.Context, req domain.Request) (domain.Response, error)
	Healthy(ctx context.Context) bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Kind() string
	Stats() domain.TransportStats
}

// Dispatcher routes one JSON-RPC request to a named upstream through its
// breaker. It is the contract the SSE layer and HTTP handlers share.
type Dispatcher interface {
	Call(ctx context.Context, server string, req domain.Request) (domain.Response, error)
	Servers() []string
}

// InferenceClient is the thin wrapper over the local LM service. It applies
// no retry or fallback policy of its own; callers decide.
type InferenceClient interface {
	Generate(ctx context.Context, model, system, prompt string) (string, error)
	Embed(ctx context.Context, model, text string) ([]float32, error)
	Version(ctx context.Context) (string, error)
}

// VectorIndex is the remote similarity collection behind the cache's L2
// tier. All methods are safe for concurrent use.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]domain.CacheEntry, error)
	Upsert(ctx context.Context, id string, vector []float32, entry domain.CacheEntry) error
	Drop(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Available() bool
}

// PromptCache is the two-tier enhancement cache.
type PromptCache interface {
	Get(ctx context.Context, prompt string) (domain.CacheEntry, bool)
	Put(ctx context.Context, prompt, enhanced, model string)
	Stats(ctx context.Context) domain.CacheStats
	Clear(ctx context.Context) error
}

// Enhancer rewrites prompts per client rules. It never fails: any error on
// the way degrades to returning the original prompt.
type Enhancer interface {
	Enhance(ctx context.Context, prompt, clientName string) domain.EnhanceResult
}
