// Package cache holds enhanced prompts in two tiers: an in-process LRU
// keyed by exact prompt text, and a remote vector collection matched by
// embedding similarity. The vector tier is strictly best effort; every
// failure there degrades to an L1-only cache rather than an error.
package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/core/ports"
	"github.com/thushan/ladle/internal/logger"
)

// Config holds the cache tuning knobs.
type Config struct {
	EmbedModel          string
	L1Capacity          int
	SimilarityThreshold float64
}

type PromptCache struct {
	l1        *lru.Cache[string, domain.CacheEntry]
	inference ports.InferenceClient
	vectors   ports.VectorIndex
	logger    logger.StyledLogger

	hits   *xsync.Counter
	misses *xsync.Counter

	embedModel string
	capacity   int
	threshold  float64

	clearMu sync.Mutex
}

func NewPromptCache(cfg Config, inference ports.InferenceClient, vectors ports.VectorIndex, log logger.StyledLogger) (*PromptCache, error) {
	capacity := cfg.L1Capacity
	if capacity <= 0 {
		capacity = domain.DefaultCacheCapacity
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = domain.DefaultSimilarityThreshold
	}

	l1, err := lru.New[string, domain.CacheEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating prompt cache: %w", err)
	}

	return &PromptCache{
		l1:         l1,
		inference:  inference,
		vectors:    vectors,
		logger:     log,
		embedModel: cfg.EmbedModel,
		capacity:   capacity,
		threshold:  threshold,
		hits:       xsync.NewCounter(),
		misses:     xsync.NewCounter(),
	}, nil
}

// Get looks the prompt up in L1 first, then by embedding similarity in
// the vector tier. Similarity hits are returned as-is and deliberately
// not copied into L1, so L1 stays an exact-text cache.
func (c *PromptCache) Get(ctx context.Context, prompt string) (domain.CacheEntry, bool) {
	if entry, ok := c.l1.Get(prompt); ok {
		c.hits.Inc()
		return entry, true
	}

	if entry, ok := c.searchL2(ctx, prompt); ok {
		c.hits.Inc()
		return entry, true
	}

	c.misses.Inc()
	return domain.CacheEntry{}, false
}

// Put stores the enhancement in L1 and then, best effort, in the vector
// tier. Embedding or upsert failures leave an L1-only entry behind.
func (c *PromptCache) Put(ctx context.Context, prompt, enhanced, model string) {
	entry := domain.CacheEntry{
		Prompt:    prompt,
		Enhanced:  enhanced,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
	c.l1.Add(prompt, entry)

	if !c.vectors.Available() {
		return
	}

	vec, err := c.embed(ctx, prompt)
	if err != nil {
		c.logger.Debug("embedding failed, entry stays L1-only", "error", err)
		return
	}
	if err := c.vectors.Upsert(ctx, uuid.NewString(), vec, entry); err != nil {
		c.logger.Warn("vector upsert failed, entry stays L1-only", "error", err)
	}
}

func (c *PromptCache) searchL2(ctx context.Context, prompt string) (domain.CacheEntry, bool) {
	if !c.vectors.Available() {
		return domain.CacheEntry{}, false
	}

	vec, err := c.embed(ctx, prompt)
	if err != nil {
		c.logger.Debug("embedding failed, skipping similarity lookup", "error", err)
		return domain.CacheEntry{}, false
	}

	entries, err := c.vectors.Search(ctx, vec, 1, c.threshold)
	if err != nil {
		c.logger.Warn("vector search failed", "error", err)
		return domain.CacheEntry{}, false
	}
	if len(entries) == 0 {
		return domain.CacheEntry{}, false
	}
	return entries[0], true
}

func (c *PromptCache) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.inference.Embed(ctx, c.embedModel, text)
	if err != nil {
		return nil, err
	}
	return normalise(vec), nil
}

// Stats snapshots both tiers. The vector count is taken live and drops
// to zero when the store is unreachable.
func (c *PromptCache) Stats(ctx context.Context) domain.CacheStats {
	hits := c.hits.Value()
	misses := c.misses.Value()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	stats := domain.CacheStats{
		L1Size:      c.l1.Len(),
		L1Capacity:  c.capacity,
		Hits:        hits,
		Misses:      misses,
		HitRate:     rate,
		L2Available: c.vectors.Available(),
	}

	if stats.L2Available {
		count, err := c.vectors.Count(ctx)
		if err != nil {
			c.logger.Debug("vector count failed", "error", err)
		} else {
			stats.L2Entries = count
		}
	}
	return stats
}

// Clear purges L1, zeroes the counters and recreates the vector
// collection. A failed drop is tolerated (the collection may not
// exist); a failed recreate is not.
func (c *PromptCache) Clear(ctx context.Context) error {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()

	c.l1.Purge()
	c.hits.Reset()
	c.misses.Reset()

	if !c.vectors.Available() {
		return nil
	}

	if err := c.vectors.Drop(ctx); err != nil {
		c.logger.Warn("dropping vector collection failed", "error", err)
	}
	if err := c.vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("recreating vector collection: %w", err)
	}
	return nil
}

// normalise scales the vector to unit length so cosine scores compare
// consistently across embedding models.
func normalise(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec
}
